package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/pkg/mapper"
)

func driverRecord(license string, typeCode *int64) *mapper.MappedRecord {
	rec := &mapper.MappedRecord{Table: "drivers"}
	rec.Set("document_id", uint64(1))
	rec.Set("license_number", license)
	if typeCode != nil {
		rec.Set("driver_type_code", *typeCode)
	}
	return rec
}

// Two sibling rows of one table may legitimately resolve different column
// sets (an unmapped enum excludes the column on one row only). Batching
// them together would let the union of keys turn the excluded column into
// an explicit NULL, so differing shapes must land in separate batches.
func TestGroupByShapeSplitsDifferingRecords(t *testing.T) {
	code := int64(2)
	full := driverRecord("D1", &code)
	partial := driverRecord("D2", nil)

	groups := groupByShape([]*mapper.MappedRecord{full, partial})
	require.Len(t, groups, 2)

	require.Len(t, groups[0], 1)
	assert.Contains(t, groups[0][0], "driver_type_code")
	assert.Equal(t, "D1", groups[0][0]["license_number"])

	require.Len(t, groups[1], 1)
	assert.Equal(t, "D2", groups[1][0]["license_number"])
	// The excluded column must not appear at all; present-as-nil would
	// still insert an explicit NULL.
	assert.NotContains(t, groups[1][0], "driver_type_code")
}

func TestGroupByShapeKeepsEqualShapesTogether(t *testing.T) {
	code := int64(1)
	records := []*mapper.MappedRecord{
		driverRecord("D1", &code),
		driverRecord("D2", &code),
		driverRecord("D3", &code),
	}

	groups := groupByShape(records)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 3)
	assert.Equal(t, "D1", groups[0][0]["license_number"])
	assert.Equal(t, "D3", groups[0][2]["license_number"])
}

// Shapes interleave in document order; grouping keeps first-seen group
// order and document order within each group.
func TestGroupByShapeInterleaved(t *testing.T) {
	code := int64(3)
	groups := groupByShape([]*mapper.MappedRecord{
		driverRecord("D1", &code),
		driverRecord("D2", nil),
		driverRecord("D3", &code),
		driverRecord("D4", nil),
	})

	require.Len(t, groups, 2)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "D1", groups[0][0]["license_number"])
	assert.Equal(t, "D3", groups[0][1]["license_number"])
	require.Len(t, groups[1], 2)
	assert.Equal(t, "D2", groups[1][0]["license_number"])
	assert.Equal(t, "D4", groups[1][1]["license_number"])
}

package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `
<Export>
  <Policy PolicyNumber="PA-2024-00123" Status="ACTIVE">
    <EffectiveDate>2024-01-01</EffectiveDate>
    <TotalPremium>$1,250.00</TotalPremium>
    <Driver LicenseNumber="D111" DriverType="PRIMARY">
      <BirthDate>1980-05-02</BirthDate>
    </Driver>
    <Driver LicenseNumber="D222" DriverType="SECONDARY">
      <BirthDate>1982-09-14</BirthDate>
    </Driver>
    <Coverage CoverageCode="BI" CoverageStatus="ACTIVE">
      <LimitAmount>100000</LimitAmount>
    </Coverage>
  </Policy>
</Export>`

func TestParseFlattensAttributesAndSimpleChildren(t *testing.T) {
	ctx, err := NewXMLParser().Parse(samplePayload)
	require.NoError(t, err)

	got, ok := ctx.Lookup("Policy.PolicyNumber")
	require.True(t, ok)
	assert.Equal(t, "PA-2024-00123", got)

	// Simple child elements flatten the same way XML attributes do.
	got, ok = ctx.Lookup("Policy.EffectiveDate")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", got)

	got, ok = ctx.Lookup("Policy.TotalPremium")
	require.True(t, ok)
	assert.Equal(t, "$1,250.00", got)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	ctx, err := NewXMLParser().Parse(samplePayload)
	require.NoError(t, err)

	for _, path := range []string{"policy.policynumber", "POLICY.POLICYNUMBER", "Policy.PolicyNumber"} {
		got, ok := ctx.Lookup(path)
		require.True(t, ok, path)
		assert.Equal(t, "PA-2024-00123", got)
	}
}

func TestRepeatedPathFirstOccurrenceWins(t *testing.T) {
	ctx, err := NewXMLParser().Parse(samplePayload)
	require.NoError(t, err)

	got, ok := ctx.Lookup("Driver.LicenseNumber")
	require.True(t, ok)
	assert.Equal(t, "D111", got)

	assert.Equal(t, []string{"D111", "D222"}, ctx.LookupAll("Driver.LicenseNumber"))
}

func TestGroupsPreserveDocumentOrder(t *testing.T) {
	ctx, err := NewXMLParser().Parse(samplePayload)
	require.NoError(t, err)

	drivers := ctx.Group("Driver")
	require.Len(t, drivers, 2)
	assert.Equal(t, 0, drivers[0].Index)
	assert.Equal(t, 1, drivers[1].Index)

	lic, ok := drivers[0].Attr("LicenseNumber")
	require.True(t, ok)
	assert.Equal(t, "D111", lic)

	bd, ok := drivers[1].Attr("BirthDate")
	require.True(t, ok)
	assert.Equal(t, "1982-09-14", bd)
}

func TestChildElementsNestUnderParent(t *testing.T) {
	ctx, err := NewXMLParser().Parse(samplePayload)
	require.NoError(t, err)

	policies := ctx.Group("Policy")
	require.Len(t, policies, 1)
	// Two drivers and one coverage are complex children of the policy.
	assert.Len(t, policies[0].Children, 3)
}

func TestParseSelectiveDropsUnselectedElements(t *testing.T) {
	ctx, err := NewXMLParser().ParseSelective(samplePayload, []string{"Policy", "Driver"})
	require.NoError(t, err)

	_, ok := ctx.Lookup("Policy.PolicyNumber")
	assert.True(t, ok)
	assert.Len(t, ctx.Group("Driver"), 2)

	// Coverage was not selected, but it lives inside the selected Policy
	// subtree, so selection cascades and it stays visible.
	assert.Len(t, ctx.Group("Coverage"), 1)
}

func TestParseSelectiveUnselectedSiblingInvisible(t *testing.T) {
	payload := `
<Export>
  <Meta BatchID="42"/>
  <Policy PolicyNumber="PA-1"/>
</Export>`

	ctx, err := NewXMLParser().ParseSelective(payload, []string{"Policy"})
	require.NoError(t, err)

	_, ok := ctx.Lookup("Meta.BatchID")
	assert.False(t, ok)
	_, ok = ctx.Lookup("Policy.PolicyNumber")
	assert.True(t, ok)
}

func TestParseMalformedPayload(t *testing.T) {
	_, err := NewXMLParser().Parse("<Policy><Unclosed></Policy>")
	assert.Error(t, err)

	_, err = NewXMLParser().Parse("   ")
	assert.Error(t, err)
}

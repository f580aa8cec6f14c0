package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validContract = `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
filter_rules:
  driver:
    required_attribute: LicenseNumber
    classifier_attribute: DriverType
    priority_values: [PRIMARY, SECONDARY]
tables:
  - name: policies
    fields:
      - column: policy_number
        source_path: Policy.PolicyNumber
        type: string
      - column: status_code
        source_path: Policy.Status
        type: int
        nullable: true
        mapping_type: [direct, enum]
        enum_mappings:
          ACTIVE: 1
          CANCELLED: 3
      - column: expiration_date
        type: date
        nullable: true
        mapping_type: [calculated]
        calculated_expression: "DATEADD(day, Policy.TermDays, DATE(Policy.EffectiveDate))"
  - name: drivers
    source_element: Driver
    filter_rule: driver
    fields:
      - column: policy_number
        type: string
        mapping_type: [cascade]
        cascade_table: policies
        source_path: policies.policy_number
      - column: license_number
        source_path: LicenseNumber
        type: string
`

func TestParseValidContract(t *testing.T) {
	c, err := Parse([]byte(validContract))
	require.NoError(t, err)

	assert.Equal(t, "personal_auto", c.ProductLine)
	assert.Equal(t, "policies", c.PrimaryTable())
	require.Len(t, c.Tables, 2)

	// Omitted mapping_type defaults to a plain direct chain.
	assert.Equal(t, []MappingType{MappingDirect}, c.Tables[0].Fields[0].MappingTypes)

	// Expressions are compiled at load time.
	assert.NotNil(t, c.Tables[0].Fields[2].Compiled)

	rule, ok := c.FilterRules["driver"]
	require.True(t, ok)
	assert.Equal(t, "LicenseNumber", rule.RequiredAttribute)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "{{{"},
		{"missing product line", `
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: policy_number
        type: string
`},
		{"missing identifier path", `
product_line: personal_auto
source_table: source_documents
tables:
  - name: policies
    fields:
      - column: policy_number
        type: string
`},
		{"no tables", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables: []
`},
		{"table without fields", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields: []
`},
		{"unknown field type", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: policy_number
        type: varchar
`},
		{"unknown mapping type", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: policy_number
        type: string
        mapping_type: [direct, reverse]
`},
		{"enum without mappings", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: status_code
        source_path: Policy.Status
        type: int
        mapping_type: [direct, enum]
`},
		{"calculated without expression", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: expiration_date
        type: date
        mapping_type: [calculated]
`},
		{"cascade without table", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: policy_number
        type: string
        mapping_type: [cascade]
`},
		{"cascade to undeclared table", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: drivers
    source_element: Driver
    fields:
      - column: policy_number
        type: string
        mapping_type: [cascade]
        cascade_table: quotes
`},
		{"bad expression syntax", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: policies
    fields:
      - column: expiration_date
        type: date
        mapping_type: [calculated]
        calculated_expression: "DATEADD(day, 30"
`},
		{"unknown filter rule reference", `
product_line: personal_auto
source_table: source_documents
identifier_path: Policy.PolicyNumber
tables:
  - name: drivers
    source_element: Driver
    filter_rule: nonexistent
    fields:
      - column: license_number
        source_path: LicenseNumber
        type: string
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var cerr *Error
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestResolveEnumCaseInsensitive(t *testing.T) {
	c, err := Parse([]byte(validContract))
	require.NoError(t, err)

	field := &c.Tables[0].Fields[1]

	for _, raw := range []string{"ACTIVE", "active", "Active", " ACTIVE "} {
		v, ok := field.ResolveEnum(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 1, v)
	}

	_, ok := field.ResolveEnum("SUSPENDED")
	assert.False(t, ok)
}

func TestTableLookup(t *testing.T) {
	c, err := Parse([]byte(validContract))
	require.NoError(t, err)

	assert.NotNil(t, c.Table("policies"))
	assert.NotNil(t, c.Table("POLICIES"))
	assert.Nil(t, c.Table("claims"))
}

func TestElementNamesCoverExpressionRefs(t *testing.T) {
	c, err := Parse([]byte(validContract))
	require.NoError(t, err)

	names := c.ElementNames()
	// Policy from identifier and expression refs, Driver from the
	// one-to-many table. Bare source paths like LicenseNumber carry no
	// element prefix and contribute nothing.
	assert.Contains(t, names, "policy")
	assert.Contains(t, names, "driver")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/contract.yaml")
	require.Error(t, err)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}

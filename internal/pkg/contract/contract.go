package contract

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/docuflow/docuflow/internal/pkg/expr"
)

// MappingType tags one step of a field's transformation chain. The chain is
// executed by an explicit interpreter loop in the mapper; there is no
// reflection or string-keyed dispatch at document time.
type MappingType string

const (
	MappingDirect         MappingType = "direct"
	MappingEnum           MappingType = "enum"
	MappingBit            MappingType = "bit"
	MappingCalculated     MappingType = "calculated"
	MappingNumericExtract MappingType = "numeric_extract"
	MappingCascade        MappingType = "cascade"
)

// FieldType is the declared scalar type of a target column.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeDecimal  FieldType = "decimal"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
)

// FieldMapping declares how one target column is produced.
type FieldMapping struct {
	Column       string        `yaml:"column" validate:"required"`
	SourcePath   string        `yaml:"source_path"`
	Type         FieldType     `yaml:"type" validate:"required,oneof=string int float decimal bool date datetime"`
	Nullable     bool          `yaml:"nullable"`
	MappingTypes []MappingType `yaml:"mapping_type"`
	EnumValues   map[string]int `yaml:"enum_mappings"`
	Expression   string        `yaml:"calculated_expression"`
	Default      *string       `yaml:"default"`
	CascadeTable string        `yaml:"cascade_table"`

	// Built once at load time, immutable afterwards.
	Compiled  expr.Expr      `yaml:"-"`
	enumLower map[string]int `yaml:"-"`
}

// TableMapping declares one target table. Field order is dependency order.
// SourceElement turns the table into a one-to-many expansion: one output
// row per element instance surviving the filter.
type TableMapping struct {
	Name          string         `yaml:"name" validate:"required"`
	SourceElement string         `yaml:"source_element"`
	FilterRule    string         `yaml:"filter_rule"`
	Fields        []FieldMapping `yaml:"fields" validate:"required,min=1,dive"`
}

// FilterRule declares how repeated sibling elements of one type are
// deduplicated: instances are grouped by the required (discriminating)
// attribute and the classifying value with the highest declared priority
// survives per group.
type FilterRule struct {
	RequiredAttribute   string   `yaml:"required_attribute" validate:"required"`
	ClassifierAttribute string   `yaml:"classifier_attribute" validate:"required"`
	PriorityValues      []string `yaml:"priority_values" validate:"required,min=1"`
}

// Contract is the immutable declarative mapping definition for one product
// line. It is loaded once per run and shared read-only across workers.
type Contract struct {
	ProductLine    string                `yaml:"product_line" validate:"required"`
	TargetSchema   string                `yaml:"target_schema"`
	SourceTable    string                `yaml:"source_table" validate:"required"`
	IdentifierPath string                `yaml:"identifier_path" validate:"required"`
	Tables         []TableMapping        `yaml:"tables" validate:"required,min=1,dive"`
	FilterRules    map[string]FilterRule `yaml:"filter_rules" validate:"dive"`
}

// Error is a fatal contract problem. It always surfaces at load time,
// before any document is processed.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contract: %s: %v", e.Msg, e.Err)
	}
	return "contract: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var validate = validator.New()

// Load reads, validates and compiles a contract file. Calculated-field
// expressions and enum lookup tables are built here exactly once; anything
// malformed aborts the run before the first document.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Msg: "read " + path, Err: err}
	}
	return Parse(data)
}

// Parse builds a contract from raw YAML bytes (JSON decodes too).
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &Error{Msg: "decode", Err: err}
	}
	if err := validate.Struct(&c); err != nil {
		return nil, &Error{Msg: "validate", Err: err}
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Contract) compile() error {
	for ti := range c.Tables {
		table := &c.Tables[ti]
		if table.FilterRule != "" {
			if _, ok := c.FilterRules[table.FilterRule]; !ok {
				return &Error{Msg: fmt.Sprintf("table %s references unknown filter rule %q", table.Name, table.FilterRule)}
			}
		}
		for fi := range table.Fields {
			field := &table.Fields[fi]
			if len(field.MappingTypes) == 0 {
				field.MappingTypes = []MappingType{MappingDirect}
			}
			for _, mt := range field.MappingTypes {
				switch mt {
				case MappingDirect, MappingEnum, MappingBit, MappingCalculated, MappingNumericExtract, MappingCascade:
				default:
					return &Error{Msg: fmt.Sprintf("field %s.%s: unknown mapping type %q", table.Name, field.Column, mt)}
				}
				switch mt {
				case MappingEnum:
					if len(field.EnumValues) == 0 {
						return &Error{Msg: fmt.Sprintf("field %s.%s: enum mapping without enum_mappings", table.Name, field.Column)}
					}
				case MappingCalculated:
					if field.Expression == "" {
						return &Error{Msg: fmt.Sprintf("field %s.%s: calculated mapping without expression", table.Name, field.Column)}
					}
				case MappingCascade:
					if field.CascadeTable == "" {
						return &Error{Msg: fmt.Sprintf("field %s.%s: cascade mapping without cascade_table", table.Name, field.Column)}
					}
					if c.Table(field.CascadeTable) == nil {
						return &Error{Msg: fmt.Sprintf("field %s.%s: cascade references undeclared table %q", table.Name, field.Column, field.CascadeTable)}
					}
				}
			}
			if field.Expression != "" {
				compiled, err := expr.Parse(field.Expression)
				if err != nil {
					return &Error{Msg: fmt.Sprintf("field %s.%s: expression %q", table.Name, field.Column, field.Expression), Err: err}
				}
				field.Compiled = compiled
			}
			if len(field.EnumValues) > 0 {
				field.enumLower = make(map[string]int, len(field.EnumValues))
				for k, v := range field.EnumValues {
					field.enumLower[strings.ToLower(k)] = v
				}
			}
		}
	}
	return nil
}

// ResolveEnum looks up an enum string case-insensitively. The boolean is
// false for unmapped strings; callers must exclude the column then, never
// substitute zero.
func (f *FieldMapping) ResolveEnum(raw string) (int, bool) {
	v, ok := f.enumLower[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// PrimaryTable is the first declared target table; the ledger's foreign key
// points at its document id column.
func (c *Contract) PrimaryTable() string {
	return c.Tables[0].Name
}

// Table returns a table mapping by name, or nil.
func (c *Contract) Table(name string) *TableMapping {
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].Name, name) {
			return &c.Tables[i]
		}
	}
	return nil
}

// ElementNames collects every element name the contract touches, for the
// parser's selective extraction mode.
func (c *Contract) ElementNames() []string {
	seen := make(map[string]bool)
	add := func(path string) {
		if i := strings.IndexByte(path, '.'); i > 0 {
			seen[strings.ToLower(path[:i])] = true
		}
	}
	add(c.IdentifierPath)
	for _, table := range c.Tables {
		if table.SourceElement != "" {
			seen[strings.ToLower(table.SourceElement)] = true
		}
		for _, field := range table.Fields {
			if field.SourcePath != "" {
				add(field.SourcePath)
			}
			if field.Compiled != nil {
				for _, ref := range expr.CollectRefs(field.Compiled) {
					add(ref)
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

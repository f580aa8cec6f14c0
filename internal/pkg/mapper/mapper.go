package mapper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/docuflow/docuflow/internal/pkg/contract"
	"github.com/docuflow/docuflow/internal/pkg/expr"
	"github.com/docuflow/docuflow/internal/pkg/filter"
	"github.com/docuflow/docuflow/internal/pkg/flatten"
)

// RejectedError marks a document that failed pre-flight validation. The
// document is skipped and ledgered failed; the run continues.
type RejectedError struct {
	DocumentID uint64
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("document %d rejected: %s", e.DocumentID, e.Reason)
}

// numericPattern keeps digits, sign and decimal point during numeric
// extraction ("$1,234.56" -> "1234.56"). Compiled once.
var numericPattern = regexp.MustCompile(`[^0-9.\-]`)

// Mapper turns one flattened document into per-table records by executing
// every field's transformation chain in declared order. It holds only the
// immutable contract and is safe to clone per worker.
type Mapper struct {
	contract *contract.Contract
}

func New(c *contract.Contract) *Mapper {
	return &Mapper{contract: c}
}

// MapDocument builds the full set of records for one document. The element
// filter runs first so that one-to-many tables expand only over surviving
// instances. Field failures degrade to column-excluded; only a missing
// mandatory identifier rejects the document.
func (m *Mapper) MapDocument(docID uint64, ctx *flatten.Context) (*DocumentRecords, error) {
	identifier, ok := ctx.Lookup(m.contract.IdentifierPath)
	if !ok || strings.TrimSpace(identifier) == "" {
		return nil, &RejectedError{DocumentID: docID, Reason: "missing mandatory identifier " + m.contract.IdentifierPath}
	}

	filter.Apply(ctx, m.contract.FilterRules)

	result := &DocumentRecords{DocumentID: docID}
	resolved := make(map[string]*MappedRecord)

	for ti := range m.contract.Tables {
		table := &m.contract.Tables[ti]
		var records []*MappedRecord

		if table.SourceElement == "" {
			records = []*MappedRecord{m.buildRecord(docID, table, ctx, nil, resolved)}
		} else {
			for _, el := range ctx.Group(table.SourceElement) {
				records = append(records, m.buildRecord(docID, table, ctx, el, resolved))
			}
		}

		if len(records) > 0 {
			// First record of a table backs cascade lookups from later tables.
			resolved[strings.ToLower(table.Name)] = records[0]
		}
		result.Tables = append(result.Tables, TableRecords{Table: table.Name, Records: records})
	}
	return result, nil
}

// buildRecord runs every field chain of one table. The document id column
// is pipeline-owned and always present; it ties output rows to the ledger.
func (m *Mapper) buildRecord(docID uint64, table *contract.TableMapping, ctx *flatten.Context, el *flatten.Element, resolved map[string]*MappedRecord) *MappedRecord {
	rec := &MappedRecord{Table: table.Name}
	rec.Set("document_id", docID)

	for fi := range table.Fields {
		field := &table.Fields[fi]
		val, present := m.resolveField(field, ctx, el, resolved)
		if !present {
			continue
		}
		rec.Set(field.Column, val)
	}
	return rec
}

// resolveField executes one field's chain, short-circuiting to
// column-excluded on the first failing step. Never returns a sentinel in
// place of a failure: an unmapped enum string excludes the column, it does
// not become zero.
func (m *Mapper) resolveField(field *contract.FieldMapping, ctx *flatten.Context, el *flatten.Element, resolved map[string]*MappedRecord) (interface{}, bool) {
	raw := expr.Absent()

	for _, mt := range field.MappingTypes {
		switch mt {
		case contract.MappingDirect:
			if s, ok := m.lookupRaw(field.SourcePath, ctx, el); ok {
				raw = expr.String(s)
			} else {
				raw = expr.Absent()
			}

		case contract.MappingCascade:
			raw = m.cascadeValue(field, resolved)

		case contract.MappingEnum:
			if raw.IsAbsent() {
				return m.excluded(field, "enum input absent")
			}
			code, ok := field.ResolveEnum(raw.AsString())
			if !ok {
				return m.excluded(field, fmt.Sprintf("unmapped enum string %q", raw.AsString()))
			}
			raw = expr.Number(float64(code))

		case contract.MappingBit:
			if raw.IsAbsent() {
				return m.excluded(field, "bit input absent")
			}
			bit, ok := normalizeBit(raw.AsString())
			if !ok {
				return m.excluded(field, fmt.Sprintf("unrecognized bit value %q", raw.AsString()))
			}
			raw = expr.Number(float64(bit))

		case contract.MappingCalculated:
			// Calculated fields see the full document context, which is what
			// makes cross-table references inside expressions possible.
			raw = field.Compiled.Eval(ctx)
			if raw.IsAbsent() {
				return m.excluded(field, "expression evaluated to absent")
			}

		case contract.MappingNumericExtract:
			if raw.IsAbsent() {
				return m.excluded(field, "numeric extract input absent")
			}
			cleaned := numericPattern.ReplaceAllString(raw.AsString(), "")
			if cleaned == "" || cleaned == "-" || cleaned == "." {
				return m.excluded(field, fmt.Sprintf("no numeric content in %q", raw.AsString()))
			}
			raw = expr.String(cleaned)
		}
	}

	if raw.IsAbsent() {
		// Defaults apply only to required fields still unresolved; a
		// nullable field simply omits the column.
		if field.Default != nil && !field.Nullable {
			raw = expr.String(*field.Default)
		} else {
			return nil, false
		}
	}

	val, ok := coerce(raw, field.Type)
	if !ok {
		return m.excluded(field, fmt.Sprintf("cannot coerce %q to %s", raw.AsString(), field.Type))
	}
	return val, true
}

// lookupRaw resolves a source path, scoped to a one-to-many element when one
// is in play: a bare attribute name or a path prefixed with the element's
// own name reads from the instance, everything else from the document.
func (m *Mapper) lookupRaw(path string, ctx *flatten.Context, el *flatten.Element) (string, bool) {
	if path == "" {
		return "", false
	}
	if el != nil {
		if i := strings.IndexByte(path, '.'); i < 0 {
			return el.Attr(path)
		} else if strings.EqualFold(path[:i], el.Name) {
			return el.Attr(path[i+1:])
		}
	}
	return ctx.Lookup(path)
}

// cascadeValue copies a column from a related, previously-resolved entity.
// The source column is the path's last segment, defaulting to the field's
// own column name.
func (m *Mapper) cascadeValue(field *contract.FieldMapping, resolved map[string]*MappedRecord) expr.Value {
	rec, ok := resolved[strings.ToLower(field.CascadeTable)]
	if !ok {
		return expr.Absent()
	}
	column := field.Column
	if field.SourcePath != "" {
		column = field.SourcePath
		if i := strings.LastIndexByte(column, '.'); i >= 0 {
			column = column[i+1:]
		}
	}
	val, ok := rec.Get(column)
	if !ok || val == nil {
		return expr.Absent()
	}
	switch v := val.(type) {
	case string:
		return expr.String(v)
	case float64:
		return expr.Number(v)
	case int64:
		return expr.Number(float64(v))
	case uint64:
		return expr.Number(float64(v))
	case bool:
		return expr.Bool(v)
	default:
		return expr.String(fmt.Sprintf("%v", v))
	}
}

// excluded logs a field resolution failure at low severity and omits the
// column. Field failures are never fatal.
func (m *Mapper) excluded(field *contract.FieldMapping, reason string) (interface{}, bool) {
	log.Debugf("[Mapper] column %s excluded: %s", field.Column, reason)
	return nil, false
}

// normalizeBit folds the usual truthy/falsy spellings to 0/1.
func normalizeBit(raw string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "t":
		return 1, true
	case "0", "false", "no", "n", "f":
		return 0, true
	}
	return 0, false
}

// coerce converts a chain result to the declared scalar type. Failure means
// column-excluded, never a corrupted value.
func coerce(v expr.Value, t contract.FieldType) (interface{}, bool) {
	switch t {
	case contract.TypeString:
		return v.AsString(), true
	case contract.TypeInt:
		f, ok := v.AsNumber()
		if !ok {
			return nil, false
		}
		return int64(f), true
	case contract.TypeFloat, contract.TypeDecimal:
		f, ok := v.AsNumber()
		if !ok {
			return nil, false
		}
		return f, true
	case contract.TypeBool:
		if bit, ok := normalizeBit(v.AsString()); ok {
			return bit == 1, true
		}
		if f, ok := v.AsNumber(); ok {
			return f != 0, true
		}
		return nil, false
	case contract.TypeDate, contract.TypeDatetime:
		ts, ok := v.AsTime()
		if !ok {
			return nil, false
		}
		return ts, true
	}
	return nil, false
}

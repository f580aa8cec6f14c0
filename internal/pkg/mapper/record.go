package mapper

// Column is one resolved target column. A column appears in a record if and
// only if its chain resolved a value; absence, explicit NULL and zero are
// three different things and never collapse into each other.
type Column struct {
	Name  string
	Value interface{}
}

// MappedRecord is one output row for one target table, columns in the
// contract's declared order.
type MappedRecord struct {
	Table   string
	Columns []Column
}

// Set appends a resolved column.
func (r *MappedRecord) Set(name string, value interface{}) {
	r.Columns = append(r.Columns, Column{Name: name, Value: value})
}

// Get returns a resolved column value. The boolean distinguishes an absent
// column from a present NULL.
func (r *MappedRecord) Get(name string) (interface{}, bool) {
	for _, col := range r.Columns {
		if col.Name == name {
			return col.Value, true
		}
	}
	return nil, false
}

// AsMap renders the record for the persistence layer.
func (r *MappedRecord) AsMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Columns))
	for _, col := range r.Columns {
		m[col.Name] = col.Value
	}
	return m
}

// TableRecords groups a document's rows for one target table.
type TableRecords struct {
	Table   string
	Records []*MappedRecord
}

// DocumentRecords is the full mapping result for one document: the ordered
// sequence of (table, rows) the migration engine commits as a single atomic
// unit. Table order follows the contract's dependency order.
type DocumentRecords struct {
	DocumentID uint64
	Tables     []TableRecords
}

// RowCount returns the total number of mapped rows across all tables.
func (d *DocumentRecords) RowCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.Records)
	}
	return n
}

package core

// Column represents a column in a database table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey"`
	Position   int    `json:"position"`
}

// TableMetadata holds metadata about a database table.
type TableMetadata struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns column names in ordinal order.
func (m *TableMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names in ordinal order.
func (m *TableMetadata) PrimaryKey() []string {
	var pk []string
	for _, c := range m.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

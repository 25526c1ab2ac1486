package bronze

// Row is one raw staged record: the column list in table order plus the
// untyped values. Rows are immutable once read; the pipeline owns them for
// the duration of a single stage.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the raw value for a column, nil when absent or NULL.
func (r Row) Get(column string) any {
	return r.Values[column]
}

// Payload returns the raw mapping for the reject sink, exactly as captured.
func (r Row) Payload() map[string]any {
	return r.Values
}

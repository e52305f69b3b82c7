package store

// Field is one named column value of a row to be appended.
type Field struct {
	Name  string
	Value interface{}
}

// Row is an ordered list of column values. Producers hand-declare the order;
// it must match the column order used when reading rows back.
type Row []Field

func (r Row) Names() []string {
	names := make([]string, 0, len(r))
	for _, f := range r {
		names = append(names, f.Name)
	}
	return names
}

func (r Row) Values() []interface{} {
	values := make([]interface{}, 0, len(r))
	for _, f := range r {
		values = append(values, f.Value)
	}
	return values
}

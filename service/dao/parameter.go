package dao

type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter builds a filter on name. Empty values are ignored; with none
// left it returns nil, which matches every record.
func NewParameter(name string, values ...string) *Parameter {
	var kept []string
	for _, value := range values {
		if value != "" {
			kept = append(kept, value)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return &Parameter{Name: name, Value: kept[0]}
	}
	return &Parameter{Name: name, Value: kept}
}

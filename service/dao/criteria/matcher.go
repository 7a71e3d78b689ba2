package criteria

import (
	"github.com/viant/agentmesh/service/dao"
)

// Fields exposes named string attributes of a record to Match.
type Fields func(name string) (string, bool)

// Match reports whether the record satisfies every parameter. A parameter
// value may be a string or a []string (any of). Unknown fields never match.
func Match(fields Fields, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		value, ok := fields(parameter.Name)
		if !ok {
			return false
		}
		switch actual := parameter.Value.(type) {
		case string:
			if value != actual {
				return false
			}
		case []string:
			if !contains(actual, value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/agentmesh/service/dao"
)

func TestMatch(t *testing.T) {
	record := map[string]string{"AgentID": "a1", "Priority": "high"}
	fields := func(name string) (string, bool) {
		v, ok := record[name]
		return v, ok
	}
	testCases := []struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", expect: true},
		{description: "single value", parameters: []*dao.Parameter{dao.NewParameter("AgentID", "a1")}, expect: true},
		{description: "single value mismatch", parameters: []*dao.Parameter{dao.NewParameter("AgentID", "a2")}, expect: false},
		{description: "any of", parameters: []*dao.Parameter{dao.NewParameter("Priority", "low", "high")}, expect: true},
		{description: "all must match", parameters: []*dao.Parameter{dao.NewParameter("AgentID", "a1"), dao.NewParameter("Priority", "low")}, expect: false},
		{description: "unknown field", parameters: []*dao.Parameter{dao.NewParameter("Missing", "x")}, expect: false},
		{description: "no values", parameters: []*dao.Parameter{dao.NewParameter("AgentID")}, expect: true},
		{description: "empty value", parameters: []*dao.Parameter{dao.NewParameter("AgentID", "")}, expect: true},
		{description: "empty values dropped", parameters: []*dao.Parameter{dao.NewParameter("AgentID", "", "a2")}, expect: false},
		{description: "unsupported value", parameters: []*dao.Parameter{{Name: "AgentID", Value: 1}}, expect: false},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, Match(fields, tc.parameters))
		})
	}
}

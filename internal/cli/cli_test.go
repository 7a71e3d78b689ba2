package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	evalKind, evalData = "", "{}"
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const testConfig = `
approval:
  policies:
    - preset: approve_api_calls
    - name: large_refund
      actionKinds: [custom]
      when: "data.amount > 100"
      priority: critical
      timeout: 1m
events:
  vendor: memory
`

func TestPolicyValidate(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	out, err := run(t, "policy", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "approve_api_calls")
	assert.Contains(t, out, "large_refund")
	assert.Contains(t, out, "critical")

	out, err = run(t, "policy", "validate", "--config", writeTestConfig(t, "broker:\n  defaultTimeout: 1s\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "No policies configured.")

	_, err = run(t, "policy", "validate", "--config", writeTestConfig(t, "approval:\n  policies:\n    - preset: nope\n"))
	assert.ErrorContains(t, err, "loading config")
}

func TestPolicyEval(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	testCases := []struct {
		description string
		kind        string
		data        string
		required    bool
	}{
		{description: "api call", kind: "api_call", required: true},
		{description: "small refund", kind: "custom", data: `{"amount": 5}`},
		{description: "large refund", kind: "custom", data: `{"amount": 500}`, required: true},
		{description: "missing field fails closed", kind: "custom", data: `{}`, required: true},
		{description: "ungated kind", kind: "agent_response"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			args := []string{"policy", "eval", "--config", path, "--kind", tc.kind}
			if tc.data != "" {
				args = append(args, "--data", tc.data)
			}
			out, err := run(t, args...)
			require.NoError(t, err)
			if tc.required {
				assert.Contains(t, out, "approval required: true")
			} else {
				assert.Contains(t, out, "approval required: false")
			}
		})
	}

	_, err := run(t, "policy", "eval", "--config", path, "--kind", "custom", "--data", "[1, 2")
	assert.ErrorContains(t, err, "parsing --data")
}

func TestPolicyPresets(t *testing.T) {
	out, err := run(t, "policy", "presets")
	require.NoError(t, err)
	for _, name := range []string{"always_approve_responses", "approve_low_confidence", "approve_sensitive_data", "no_approval"} {
		assert.Contains(t, out, name)
	}
}

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_MessageRouted(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.MessageRouted("request", OutcomeDelivered, 10*time.Millisecond)
	m.MessageRouted("request", OutcomeTimeout, time.Second)
	m.MessageRouted("notification", OutcomeDelivered, 0)

	assert.Equal(t, 3, testutil.CollectAndCount(m.MessagesRouted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("request", OutcomeTimeout)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SendDuration))
}

func TestMetrics_Approval(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ApprovalRequested("api_call")
	m.ApprovalRequested("api_call")
	m.ApprovalDecided("approved", "human", 2*time.Second)

	expected := `
# HELP agentmesh_approval_requests_total Total number of approval requests by action kind
# TYPE agentmesh_approval_requests_total counter
agentmesh_approval_requests_total{action_kind="api_call"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.ApprovalRequests, strings.NewReader(expected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingApprovals))

	m.SetPendingApprovals(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingApprovals))
	m.SetRegisteredAgents(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RegisteredAgents))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.MessageRouted("request", OutcomeDelivered, 0)
	m.SetRegisteredAgents(1)
	m.ApprovalRequested("custom")
	m.ApprovalDecided("approved", "system", 0)
	m.SetPendingApprovals(0)
}

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

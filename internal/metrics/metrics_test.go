package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestRecordRevision(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.RevisionOutcomes.WithLabelValues("sms", "improved"))

	m.RecordRevision("sms", "improved", 3*time.Second)

	after := testutil.ToFloat64(m.RevisionOutcomes.WithLabelValues("sms", "improved"))
	assert.Equal(t, before+1, after)
}

func TestRecordMemoryProposals(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.MemoryProposals.WithLabelValues("dropped"))

	m.RecordMemoryProposals(2, 1, 3)

	assert.Equal(t, before+3, testutil.ToFloat64(m.MemoryProposals.WithLabelValues("dropped")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRevision("email", "not_attempted", time.Second)
		m.RecordJudge(true, false, 80)
		m.RecordLLMCall("k", "m", "success", time.Second, 10, 10)
		m.RecordContextTokens("draft", "knowledge", 100)
		m.RecordMemoryProposals(1, 1, 1)
		m.RecordJob("revision", "completed")
	})
}

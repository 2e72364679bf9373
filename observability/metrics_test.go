package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counters(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg).(*promMetrics)

	m.EnvelopeReceived("text")
	m.EnvelopeReceived("text")
	m.Relayed("text", 3)
	m.DuplicateDropped()
	m.MembersChanged(4)
	m.MemberDisconnected("heartbeat")

	req.Equal(2.0, testutil.ToFloat64(m.received.WithLabelValues("text")))
	req.Equal(3.0, testutil.ToFloat64(m.relayed.WithLabelValues("text")))
	req.Equal(1.0, testutil.ToFloat64(m.duplicates))
	req.Equal(4.0, testutil.ToFloat64(m.members))
	req.Equal(1.0, testutil.ToFloat64(m.disconnects.WithLabelValues("heartbeat")))
}

func TestSelfStats(t *testing.T) {
	req := require.New(t)
	stats, err := SelfStats()
	req.NoError(err)
	req.NotZero(stats.PID)
	req.Positive(stats.Goroutines)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	m := New("")

	m.ObserveDownstream("/status", "ok", 10*time.Millisecond)
	m.ObserveDownstream("/status", "TIMEOUT", time.Second)
	m.ObserveTick("restart")
	m.ObserveRequest("GET", "200")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.downstreamCalls.WithLabelValues("/status", "TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("restart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.downstreamDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDownstream("/start", "ok", time.Millisecond)
		m.ObserveTick("none")
		m.ObserveRequest("POST", "500")
	})
}

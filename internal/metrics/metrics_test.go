package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	c := NewCollector()

	c.SessionStarted("send")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeSessions.WithLabelValues("send")))

	c.SessionFinished("send", OutcomeSuccess, 1000000, time.Now().Add(-time.Second))

	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeSessions.WithLabelValues("send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("send", OutcomeSuccess)))
	assert.Equal(t, 1000000.0, testutil.ToFloat64(c.bytes.WithLabelValues("send")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestFailedSessionMovesNoBytes(t *testing.T) {
	c := NewCollector()

	c.SessionStarted("receive")
	c.SessionFinished("receive", OutcomeFailed, 0, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("receive", OutcomeFailed)))
	assert.Equal(t, 0, testutil.CollectAndCount(c.bytes))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.SessionStarted("send")
		c.SessionFinished("send", OutcomeSuccess, 10, time.Now())
	})
	assert.Nil(t, c.Registry())
}

func TestServeExposesMetrics(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewCollector()
	c.SessionStarted("send")
	c.SessionFinished("send", OutcomeSuccess, 42, time.Now())

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, addr, logger) }()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, string(body), `flick_bytes_transferred_total{role="send"} 42`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not shut down")
	}
}

func TestServeFailsFastWhenAddressTaken(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	done := make(chan error, 1)
	go func() { done <- NewCollector().Serve(context.Background(), occupied.Addr().String(), logger) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address already in use")
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept running on an occupied address")
	}
}

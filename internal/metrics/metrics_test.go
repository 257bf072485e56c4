package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemGaugeAndLast(t *testing.T) {
	m := New()
	defer m.Close()

	_, ok := m.Last("pressure")
	assert.False(t, ok)

	m.Gauge("pressure", 1012)
	m.Gauge("pressure", 1013)

	assert.Eventually(t, func() bool {
		v, ok := m.Last("pressure")
		return ok && v.V == 1013
	}, time.Second, 5*time.Millisecond)
}

func TestInMemHourlyAvg(t *testing.T) {
	now := time.Date(2024, 11, 6, 15, 30, 0, 0, time.UTC)
	m := &InMem{
		gaugeTimeLine: map[string][]Value{
			"temperature": {
				{T: now.Add(-26 * time.Hour), V: 100}, // out of range
				{T: now.Add(-90 * time.Minute), V: 10},
				{T: now.Add(-80 * time.Minute), V: 20},
				{T: now.Add(-20 * time.Minute), V: 30},
				{T: now.Add(-10 * time.Minute), V: 31},
			},
		},
		now: func() time.Time { return now },
	}

	avg := m.Avg("temperature", 24*time.Hour)
	require.Len(t, avg, 2)
	assert.Equal(t, Value{T: now.Add(-90 * time.Minute).Truncate(time.Hour), V: 15}, avg[0])
	assert.Equal(t, Value{T: now.Truncate(time.Hour), V: 30.5}, avg[1])

	assert.Nil(t, m.Avg("humidity", time.Hour))
}

func TestInMemCleanup(t *testing.T) {
	now := time.Date(2024, 11, 6, 15, 30, 0, 0, time.UTC)
	m := &InMem{
		gaugeTimeLine: map[string][]Value{
			"pressure": {
				{T: now.Add(-3 * time.Hour), V: 1000},
				{T: now.Add(-time.Minute), V: 1001},
			},
		},
		retentionDuration: time.Hour,
		now:               func() time.Time { return now },
	}

	m.cleanup()
	assert.Equal(t, []Value{{T: now.Add(-time.Minute), V: 1001}}, m.gaugeTimeLine["pressure"])
}

func TestInMemCloseDropsGauges(t *testing.T) {
	m := New()
	m.Close()
	m.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Gauge("t", float64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Gauge blocked after Close")
	}
}

func TestProm(t *testing.T) {
	p := NewProm("BMP180")

	p.Gauge("pressure", 699)
	p.Gauge("temperature", 15)
	p.Poll(nil)
	p.Poll(errors.New("short read"))

	assert.Equal(t, 699.0, testutil.ToFloat64(p.values.WithLabelValues("pressure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.failures))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `meep_sensor_value{quantity="temperature",sensor="BMP180"} 15`)
	assert.Contains(t, string(body), `meep_sensor_read_failures_total{sensor="BMP180"} 1`)
}

package srv

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egregors/meep/internal/metrics"
	"github.com/egregors/meep/internal/sensors"
)

type fakeSensor struct {
	t, p float64
	err  error
}

func (f *fakeSensor) Name() string { return "FAKE" }
func (f *fakeSensor) Close() error { return nil }

func (f *fakeSensor) CurrentTemperature(context.Context) (float64, error) {
	return f.t, f.err
}

func (f *fakeSensor) CurrentPressure(context.Context) (float64, error) {
	return f.p, f.err
}

type fakeHap struct {
	temps []float64
	hums  []float64
}

func (f *fakeHap) SetCurrentTemperature(t float64) { f.temps = append(f.temps, t) }
func (f *fakeHap) SetCurrentHumidity(h float64) { f.hums = append(f.hums, h) }
func (f *fakeHap) ListenAndServe(ctx context.Context) error { <-ctx.Done(); return nil }

type fakeMetrics struct {
	mu     sync.Mutex
	gauges map[string][]float64
	avg    map[string][]metrics.Value
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{gauges: map[string][]float64{}, avg: map[string][]metrics.Value{}}
}

func (f *fakeMetrics) Gauge(key string, val float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[key] = append(f.gauges[key], val)
}

func (f *fakeMetrics) Avg(key string, _ time.Duration) []metrics.Value {
	return f.avg[key]
}

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, _ string) error {
	f.titles = append(f.titles, title)
	return nil
}

func TestFormatUptime(t *testing.T) {
	tbl := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Minute, "(uptime: 30m)"},
		{65 * time.Minute, "(uptime: 1h 5m)"},
		{25*time.Hour + 30*time.Minute, "(uptime: 1d 1h 30m)"},
	}
	for _, tt := range tbl {
		server := &Server{startTime: time.Now().Add(-tt.ago)}
		assert.Equal(t, tt.want, server.formatUptime())
	}
}

func TestTitleWithUptime(t *testing.T) {
	server := &Server{
		sensorStatus: ONLINE,
		startTime:    time.Now().Add(-45 * time.Minute),
	}
	assert.Equal(t, "Sensor: 🟢 Online (uptime: 45m)\n", server.title())
}

func TestTitleOfflineWithUptime(t *testing.T) {
	server := &Server{
		sensorStatus: OFFLINE,
		sensorErr:    errors.New("test error"),
		startTime:    time.Now().Add(-2*time.Hour - 15*time.Minute),
	}
	assert.Equal(t, "Sensor: 🔴 Offline (uptime: 2h 15m)\nError: test error\n", server.title())
}

func TestPullDataFromSensor(t *testing.T) {
	sensor := &fakeSensor{t: 15, p: 699}
	hk, m, n := &fakeHap{}, newFakeMetrics(), &fakeNotifier{}
	s := New(sensor, hk, m, WithNotifier(n))

	s.pullDataFromSensor(context.Background())
	s.pushDataToHK()

	assert.Equal(t, ONLINE, s.sensorStatus)
	assert.Equal(t, []float64{15}, m.gauges["temperature"])
	assert.Equal(t, []float64{699}, m.gauges["pressure"])
	assert.Equal(t, []float64{15}, hk.temps)
	assert.Empty(t, hk.hums)
	assert.Empty(t, n.titles)

	// goes offline: one notification, no HomeKit update
	sensor.err = errors.New("i2cbus: bus is closed")
	s.pullDataFromSensor(context.Background())
	s.pushDataToHK()
	s.pullDataFromSensor(context.Background())

	assert.Equal(t, OFFLINE, s.sensorStatus)
	require.Error(t, s.sensorErr)
	assert.Contains(t, s.sensorErr.Error(), "bus is closed")
	assert.Equal(t, []string{"FAKE is offline"}, n.titles)
	assert.Equal(t, []float64{15}, hk.temps)

	// back online
	sensor.err = nil
	sensor.t = 16
	s.pullDataFromSensor(context.Background())
	assert.Equal(t, ONLINE, s.sensorStatus)
	assert.NoError(t, s.sensorErr)
	assert.Equal(t, []float64{15, 16}, m.gauges["temperature"])
}

func TestPullDataFromSensorFailsOnFirstPoll(t *testing.T) {
	n := &fakeNotifier{}
	s := New(&fakeSensor{err: errors.New("no ack")}, &fakeHap{}, newFakeMetrics(), WithNotifier(n))

	s.pullDataFromSensor(context.Background())
	assert.Equal(t, OFFLINE, s.sensorStatus)
	assert.Equal(t, []string{"FAKE is offline"}, n.titles)
}

func TestPullDataFromSensorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := &fakeNotifier{}
	s := New(&fakeSensor{err: context.Canceled}, &fakeHap{}, newFakeMetrics(), WithNotifier(n))
	s.pullDataFromSensor(ctx)

	assert.False(t, s.polled)
	assert.Empty(t, n.titles)
}

func TestPullDataFromSensorExporter(t *testing.T) {
	prom := metrics.NewProm("FAKE")
	sensor := &fakeSensor{t: 21.5, p: 1013}
	s := New(sensor, &fakeHap{}, newFakeMetrics(), WithExporter(prom))

	s.pullDataFromSensor(context.Background())
	sensor.err = errors.New("boom")
	s.pullDataFromSensor(context.Background())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `meep_sensor_value{quantity="temperature",sensor="FAKE"} 21.5`)
	assert.Contains(t, body, `meep_sensor_polls_total{sensor="FAKE"} 2`)
	assert.Contains(t, body, `meep_sensor_read_failures_total{sensor="FAKE"} 1`)
}

func TestHandleIndex(t *testing.T) {
	m := newFakeMetrics()
	h0 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	m.avg["temperature"] = []metrics.Value{{T: h0, V: 20}, {T: h0.Add(time.Hour), V: 21}}
	m.avg["pressure"] = []metrics.Value{{T: h0, V: 1000}, {T: h0.Add(time.Hour), V: 1002}}

	s := New(&fakeSensor{t: 21, p: 1002}, &fakeHap{}, m)
	s.pullDataFromSensor(context.Background())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "Sensor: 🟢 Online (uptime: 0m)\n"))
	assert.Contains(t, body, "temperature     21.00 °C")
	assert.Contains(t, body, "pressure      1002.00 hPa")
	assert.Contains(t, body, "| 2024-01-02 10h  |          20.00 | ~      1000.00 |              - |")
	assert.Contains(t, body, "| 2024-01-02 11h  |          21.00 | ^      1002.00 |              - |")
	assert.Contains(t, body, "pressure, hPa:\n1002.00\n")
	assert.NotContains(t, body, "humidity, %:")

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderCurrentGPS(t *testing.T) {
	out := renderCurrent(sensors.Reading{Values: map[sensors.Quantity]float64{
		sensors.Latitude:    48.1173,
		sensors.Longitude:   11.516667,
		sensors.GroundSpeed: 10.2,
	}})

	assert.Equal(t, "latitude        48.12 °\nlongitude       11.52 °\nground_speed    10.20 km/h\n", out)
}

func TestHourlyAvgTablePressureTrend(t *testing.T) {
	h0 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	table := renderHourlyAvgTable(map[sensors.Quantity][]metrics.Value{
		sensors.Temperature: {{T: h0, V: 20}, {T: h0.Add(time.Hour), V: 21}, {T: h0.Add(2 * time.Hour), V: 22}},
		sensors.Pressure:    {{T: h0.Add(time.Hour), V: 1002}, {T: h0.Add(2 * time.Hour), V: 1001}},
	})

	// the first hour with pressure has nothing to compare against
	assert.Contains(t, table, "| 2024-01-02 10h  |          20.00 | ~            - |              - |")
	assert.Contains(t, table, "| 2024-01-02 11h  |          21.00 | ~      1002.00 |              - |")
	assert.Contains(t, table, "| 2024-01-02 12h  |          22.00 | v      1001.00 |              - |")
}

func TestHandleReading(t *testing.T) {
	sensor := &fakeSensor{t: 15, p: 699}
	s := New(sensor, &fakeHap{}, newFakeMetrics())

	get := func() readingJSON {
		rec := httptest.NewRecorder()
		s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reading", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp readingJSON
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	resp := get()
	assert.Equal(t, "offline", resp.Status)
	assert.Nil(t, resp.Time)

	s.pullDataFromSensor(context.Background())
	resp = get()
	assert.Equal(t, "FAKE", resp.Sensor)
	assert.Equal(t, "online", resp.Status)
	assert.InDelta(t, 699, resp.Values[sensors.Pressure], 1e-9)
	assert.NotNil(t, resp.Time)

	sensor.err = errors.New("no ack")
	s.pullDataFromSensor(context.Background())
	resp = get()
	assert.Equal(t, "offline", resp.Status)
	assert.Contains(t, resp.Error, "no ack")
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newFakeMetrics()
	s := New(&fakeSensor{t: 15, p: 699}, &fakeHap{}, m,
		WithAddr("127.0.0.1:0"), WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.gauges["temperature"]) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

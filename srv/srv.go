package srv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/egregors/meep/internal/metrics"
	"github.com/egregors/meep/internal/sensors"
	"github.com/egregors/meep/log"
	"github.com/egregors/meep/utils/bp"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultAddr         = ":80"
	shutdownTimeout     = 5 * time.Second
	plotRows            = 4
)

type HapServer interface {
	SetCurrentTemperature(t float64)
	SetCurrentHumidity(h float64)

	ListenAndServe(ctx context.Context) error
}

type Metrics interface {
	Gauge(key string, val float64)
	Avg(key string, dur time.Duration) []metrics.Value
}

type Exporter interface {
	Gauge(key string, val float64)
	Poll(err error)
	Handler() http.Handler
}

type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

type SensorStatus int

const (
	OFFLINE SensorStatus = iota
	ONLINE
)

func (s SensorStatus) String() string {
	if s == ONLINE {
		return "🟢 Online"
	}

	return "🔴 Offline"
}

type Option func(s *Server)

func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pollInterval = d
	}
}

func WithExporter(e Exporter) Option {
	return func(s *Server) {
		s.exporter = e
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

type Server struct {
	hkSrv    HapServer
	sensor   sensors.Sensor
	metrics  Metrics
	exporter Exporter
	notifier Notifier

	addr         string
	pollInterval time.Duration
	startTime    time.Time

	mu           sync.RWMutex
	sensorStatus SensorStatus
	sensorErr    error
	polled       bool
	last         sensors.Reading
}

func New(sensor sensors.Sensor, hapSrv HapServer, metrics Metrics, opts ...Option) *Server {
	s := &Server{
		hkSrv:        hapSrv,
		sensor:       sensor,
		metrics:      metrics,
		addr:         defaultAddr,
		pollInterval: defaultPollInterval,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info.Printf("start polling %s every %v", s.sensor.Name(), s.pollInterval)
		s.pollLoop(ctx)
		return nil
	})
	// go web server
	g.Go(func() error {
		log.Info.Printf("start web server on %s", s.addr)
		return s.runWebServer(ctx)
	})
	// go hap server
	g.Go(func() error {
		log.Info.Println("start HAP server")
		return s.hkSrv.ListenAndServe(ctx)
	})

	return g.Wait()
}

func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.pullDataFromSensor(ctx)
		s.pushDataToHK()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pullDataFromSensor(ctx context.Context) {
	r, err := sensors.Read(ctx, s.sensor)
	if s.exporter != nil {
		s.exporter.Poll(err)
	}
	if err != nil && ctx.Err() != nil {
		// shutting down, not a sensor fault
		return
	}

	s.mu.Lock()
	wasOnline, firstPoll := s.sensorStatus == ONLINE, !s.polled
	s.polled = true
	if err != nil {
		s.sensorStatus, s.sensorErr = OFFLINE, err
		s.mu.Unlock()

		log.Erro.Printf("can't get sensor data: %s", err.Error())
		if wasOnline || firstPoll {
			s.notify(ctx, fmt.Sprintf("%s is offline", s.sensor.Name()), err.Error())
		}

		return
	}
	s.sensorStatus, s.sensorErr = ONLINE, nil
	s.last = r
	s.mu.Unlock()

	if !wasOnline && !firstPoll {
		log.Info.Printf("%s is back online", s.sensor.Name())
	}

	for q, v := range r.Values {
		s.metrics.Gauge(string(q), v)
		if s.exporter != nil {
			s.exporter.Gauge(string(q), v)
		}
	}
}

func (s *Server) notify(ctx context.Context, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, title, message); err != nil {
		log.Erro.Printf("can't send notification: %s", err.Error())
	}
}

func (s *Server) pushDataToHK() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sensorStatus != ONLINE {
		return
	}
	if t, ok := s.last.Values[sensors.Temperature]; ok {
		s.hkSrv.SetCurrentTemperature(t)
	}
	if h, ok := s.last.Values[sensors.Humidity]; ok {
		s.hkSrv.SetCurrentHumidity(h)
	}
}

func (s *Server) runWebServer(ctx context.Context) error {
	webSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 1 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := webSrv.Shutdown(shutdownCtx); err != nil {
			log.Erro.Printf("can't shutdown web server: %s", err.Error())
		}
	}()

	if err := webSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/reading", s.handleReading)
	if s.exporter != nil {
		mux.Handle("/metrics", s.exporter.Handler())
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.mu.RLock()
	title := s.title()
	current := renderCurrent(s.last)
	s.mu.RUnlock()

	avg := make(map[sensors.Quantity][]metrics.Value, len(quantities))
	for _, q := range quantities {
		avg[q] = s.metrics.Avg(string(q), 24*time.Hour)
	}

	_, _ = fmt.Fprintf(w, "%s\n%s\n%s\n%s", title, current, renderHourlyAvgTable(avg), renderPlots(avg))
}

// renderPlots draws every quantity with at least two hourly averages.
func renderPlots(avg map[sensors.Quantity][]metrics.Value) string {
	var builder strings.Builder
	for _, q := range quantities {
		if len(avg[q]) < 2 {
			continue
		}
		vs := make([]float64, len(avg[q]))
		for i, v := range avg[q] {
			vs[i] = v.V
		}
		builder.WriteString(fmt.Sprintf("%s, %s:\n%s\n\n", q, units[q], bp.SimplePlot(plotRows, vs)))
	}

	return builder.String()
}

type readingJSON struct {
	Sensor string                       `json:"sensor"`
	Status string                       `json:"status"`
	Error  string                       `json:"error,omitempty"`
	Values map[sensors.Quantity]float64 `json:"values,omitempty"`
	Time   *time.Time                   `json:"time,omitempty"`
}

func (s *Server) handleReading(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := readingJSON{
		Sensor: s.sensor.Name(),
		Status: "offline",
		Values: s.last.Values,
	}
	if s.sensorStatus == ONLINE {
		resp.Status = "online"
	}
	if s.sensorErr != nil {
		resp.Error = s.sensorErr.Error()
	}
	if !s.last.Time.IsZero() {
		t := s.last.Time
		resp.Time = &t
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Erro.Printf("can't encode reading: %s", err.Error())
	}
}

// title must be called with s.mu held.
func (s *Server) title() string {
	title := fmt.Sprintf("Sensor: %s %s\n", s.sensorStatus, s.formatUptime())
	if s.sensorStatus == OFFLINE && s.sensorErr != nil {
		title += fmt.Sprintf("Error: %s\n", s.sensorErr.Error())
	}

	return title
}

func (s *Server) formatUptime() string {
	up := time.Since(s.startTime)
	days := int(up.Hours()) / 24
	hours := int(up.Hours()) % 24
	minutes := int(up.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("(uptime: %dd %dh %dm)", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("(uptime: %dh %dm)", hours, minutes)
	default:
		return fmt.Sprintf("(uptime: %dm)", minutes)
	}
}

var quantities = []sensors.Quantity{sensors.Temperature, sensors.Pressure, sensors.Humidity}

// currentQuantities adds the ones without hourly history.
var currentQuantities = append(append([]sensors.Quantity{}, quantities...),
	sensors.Latitude, sensors.Longitude, sensors.Altitude, sensors.GroundSpeed, sensors.Track,
)

var units = map[sensors.Quantity]string{
	sensors.Temperature: "°C",
	sensors.Pressure:    "hPa",
	sensors.Humidity:    "%",
	sensors.Latitude:    "°",
	sensors.Longitude:   "°",
	sensors.Altitude:    "m",
	sensors.GroundSpeed: "km/h",
	sensors.Track:       "°",
}

func renderCurrent(r sensors.Reading) string {
	var builder strings.Builder
	for _, q := range currentQuantities {
		v, ok := r.Values[q]
		if !ok {
			continue
		}
		builder.WriteString(fmt.Sprintf("%-12s %8.2f %s\n", q, v, units[q]))
	}

	return builder.String()
}

func renderHourlyAvgTable(avg map[sensors.Quantity][]metrics.Value) string {
	var builder strings.Builder
	builder.WriteString("+-----------------+----------------+----------------+----------------+\n")
	builder.WriteString("|  Hour           |       T        |       P        |        H       |\n")
	builder.WriteString("+-----------------+----------------+----------------+----------------+\n")

	// hour -> value per quantity
	merge := make(map[time.Time]map[sensors.Quantity]float64)
	for q, vs := range avg {
		for _, v := range vs {
			if _, ok := merge[v.T]; !ok {
				merge[v.T] = make(map[sensors.Quantity]float64, len(quantities))
			}
			merge[v.T][q] = v.V
		}
	}

	hours := make([]time.Time, 0, len(merge))
	for h := range merge {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	// pressure trend: ^ rising, v falling, ~ steady
	up, down, same := "^", "v", "~"
	var (
		prevP    float64
		havePrev bool
	)
	for _, hour := range hours {
		vals := merge[hour]
		p, hasP := vals[sensors.Pressure]

		progMark := same
		switch {
		case !hasP || !havePrev:
		case p > prevP:
			progMark = up
		case p < prevP:
			progMark = down
		}
		if hasP {
			prevP, havePrev = p, true
		}

		builder.WriteString(fmt.Sprintf("| %-15s | %s | %s%s | %s |\n",
			hour.Format("2006-01-02 15h"),
			cell(vals, sensors.Temperature, 14),
			progMark, cell(vals, sensors.Pressure, 13),
			cell(vals, sensors.Humidity, 14),
		))
	}

	builder.WriteString("+-----------------+----------------+----------------+----------------+\n")

	return builder.String()
}

func cell(vals map[sensors.Quantity]float64, q sensors.Quantity, width int) string {
	v, ok := vals[q]
	if !ok {
		return fmt.Sprintf("%*s", width, "-")
	}

	return fmt.Sprintf("%*.2f", width, v)
}

package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/egregors/meep/log"
)

const (
	cleanerWorkerSleep = 30 * time.Second
)

type Option func(m *InMem)

func WithRetention(dur time.Duration) Option {
	return func(m *InMem) {
		m.retentionDuration = dur
	}
}

type Value struct {
	T time.Time
	V float64
}

type valueChanMsg struct {
	key string
	m   Value
}

// InMem keeps a timeline of gauge values per key for the retention period.
type InMem struct {
	mu            sync.RWMutex
	gaugeTimeLine map[string][]Value
	gaugeTLch     chan valueChanMsg
	done          chan struct{}
	closeOnce     sync.Once

	retentionDuration time.Duration
	now               func() time.Time
}

func New(opts ...Option) *InMem {
	m := &InMem{
		gaugeTimeLine: make(map[string][]Value),
		gaugeTLch:     make(chan valueChanMsg, 64),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	go m.collector()
	go m.cleaner()

	return m
}

// Close stops the workers. Gauges sent after Close are dropped.
func (m *InMem) Close() {
	m.closeOnce.Do(func() {
		log.Debg.Println("stop metrics workers")
		close(m.done)
	})
}

func (m *InMem) Gauge(key string, val float64) {
	log.Debg.Printf("send: gauge %s: %v", key, val)
	select {
	case m.gaugeTLch <- valueChanMsg{key: key, m: Value{T: m.now(), V: val}}:
	case <-m.done:
	}
}

// Last returns the most recent value of key.
func (m *InMem) Last(key string) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := m.gaugeTimeLine[key]
	if len(data) == 0 {
		return Value{}, false
	}

	return data[len(data)-1], true
}

// Avg returns hourly averages of key over the last dur, oldest first.
func (m *InMem) Avg(key string, dur time.Duration) []Value {
	m.mu.RLock()
	data, ok := m.gaugeTimeLine[key]
	if !ok {
		m.mu.RUnlock()
		return nil
	}

	// get data for duration
	end := m.now()
	start := end.Add(-dur)
	var durData []Value
	for _, val := range data {
		t := val.T
		if t.After(start) && !t.After(end) {
			durData = append(durData, val)
		}
	}
	m.mu.RUnlock()

	hAvg := make(map[time.Time][]float64)
	for _, v := range durData {
		t := v.T.Truncate(time.Hour)
		hAvg[t] = append(hAvg[t], v.V)
	}

	avg := make([]Value, 0, len(hAvg))
	for k, v := range hAvg {
		sum := 0.0
		for _, vv := range v {
			sum += vv
		}

		avg = append(avg, Value{T: k, V: sum / (float64(len(v)))})
	}
	sort.Slice(avg, func(i, j int) bool {
		return avg[i].T.Before(avg[j].T)
	})

	return avg
}

func (m *InMem) collector() {
	log.Debg.Println("collector started")
	for {
		select {
		case msg := <-m.gaugeTLch:
			log.Debg.Printf("got: gauge %s: %v at %v", msg.key, msg.m.V, msg.m.T)
			m.mu.Lock()
			m.gaugeTimeLine[msg.key] = append(m.gaugeTimeLine[msg.key], msg.m)
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

func (m *InMem) cleaner() {
	if m.retentionDuration == 0 {
		log.Info.Println("retention isn't set up")

		return
	}

	ticker := time.NewTicker(cleanerWorkerSleep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

func (m *InMem) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Debg.Printf("cleanup. retention period: %v\n", m.retentionDuration)
	cutoff := m.now().Add(-m.retentionDuration)
	var totalVs, totalNewVs int
	for k, v := range m.gaugeTimeLine {
		var newV []Value
		for _, vv := range v {
			if vv.T.After(cutoff) {
				newV = append(newV, vv)
			}
		}
		totalVs += len(v)
		totalNewVs += len(newV)
		m.gaugeTimeLine[k] = newV
	}

	diff := totalVs - totalNewVs
	if diff != 0 {
		log.Debg.Printf("cleaner removed %d gauges by retention policy\n", diff)
	}
}

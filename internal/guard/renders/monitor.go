// Package renders counts component renders in a sliding window and flags
// components that re-render faster than any real interaction could cause.
// It only observes; acting on an excessive-render signal is up to the caller.
package renders

import (
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Defaults
const (
	DefaultTimeWindow = 5 * time.Second
	DefaultMaxRenders = 50
)

// Config holds monitor tunables.
type Config struct {
	TimeWindow time.Duration
	MaxRenders int
}

// Excessive is emitted when a component's window exceeds MaxRenders.
type Excessive struct {
	Component       string        `json:"component"`
	Count           int           `json:"count"`
	TimeSpan        time.Duration `json:"time_span"`
	AverageInterval time.Duration `json:"average_interval"`
	At              time.Time     `json:"at"`
}

// ComponentStats summarizes one component's current window.
type ComponentStats struct {
	Component string `json:"component"`
	Count     int    `json:"count"`
	Excessive bool   `json:"excessive"`
}

// Monitor holds one RenderWindow per component name.
type Monitor struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
	windows  map[string][]time.Time
	handlers []func(Excessive)
}

// New creates a monitor.
func New(cfg Config, now func() time.Time, logger *zap.Logger) *Monitor {
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = DefaultTimeWindow
	}
	if cfg.MaxRenders <= 0 {
		cfg.MaxRenders = DefaultMaxRenders
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:     cfg,
		now:     now,
		logger:  logger,
		windows: make(map[string][]time.Time),
	}
}

// OnExcessive registers fn to receive excessive-render signals.
func (m *Monitor) OnExcessive(fn func(Excessive)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// RecordRender appends a render of component and prunes its window. It
// returns the signal emitted, if the pruned window exceeds MaxRenders.
func (m *Monitor) RecordRender(component string) (Excessive, bool) {
	m.mu.Lock()
	now := m.now()
	window := prune(append(m.windows[component], now), now.Add(-m.cfg.TimeWindow))
	m.windows[component] = window

	if len(window) <= m.cfg.MaxRenders {
		m.mu.Unlock()
		return Excessive{}, false
	}

	ev := Excessive{
		Component:       component,
		Count:           len(window),
		TimeSpan:        window[len(window)-1].Sub(window[0]),
		AverageInterval: averageInterval(window),
		At:              now,
	}
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()

	m.logger.Warn("excessive renders",
		zap.String("component", component),
		zap.Int("count", ev.Count),
		zap.Duration("time_span", ev.TimeSpan),
		zap.Duration("average_interval", ev.AverageInterval))

	for _, fn := range handlers {
		fn(ev)
	}
	return ev, true
}

// Window returns the pruned render timestamps of component.
func (m *Monitor) Window(component string) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	window, ok := m.windows[component]
	if !ok {
		return nil
	}
	window = m.storeLocked(component, prune(window, m.now().Add(-m.cfg.TimeWindow)))
	return append([]time.Time(nil), window...)
}

// Stats returns the window size of every known component, busiest first.
func (m *Monitor) Stats() []ComponentStats {
	m.mu.Lock()
	cutoff := m.now().Add(-m.cfg.TimeWindow)
	stats := make([]ComponentStats, 0, len(m.windows))
	for name, window := range m.windows {
		window = m.storeLocked(name, prune(window, cutoff))
		if len(window) == 0 {
			continue
		}
		stats = append(stats, ComponentStats{
			Component: name,
			Count:     len(window),
			Excessive: len(window) > m.cfg.MaxRenders,
		})
	}
	m.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Component < stats[j].Component
		}
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// Forget drops a component's window, typically on unmount.
func (m *Monitor) Forget(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, component)
}

// storeLocked writes back a pruned window, dropping the key once it is empty.
func (m *Monitor) storeLocked(component string, window []time.Time) []time.Time {
	if len(window) == 0 {
		delete(m.windows, component)
		return nil
	}
	m.windows[component] = window
	return window
}

// prune drops timestamps before cutoff. Windows are appended in time
// order, so the survivors are a suffix.
func prune(window []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(window), func(i int) bool { return !window[i].Before(cutoff) })
	if i == 0 {
		return window
	}
	return append(window[:0], window[i:]...)
}

func averageInterval(window []time.Time) time.Duration {
	if len(window) < 2 {
		return 0
	}
	gaps := make([]float64, len(window)-1)
	for i := 1; i < len(window); i++ {
		gaps[i-1] = float64(window[i].Sub(window[i-1]))
	}
	return time.Duration(stat.Mean(gaps, nil))
}

package competitor

import (
	"fenrir/internal/engine"
	"fenrir/internal/matchevents"
	"fenrir/internal/scoreboard"
	"sync"

	"github.com/rs/zerolog"
)

// Manager is the controller-owned roster of configured traders. It
// authenticates logins and hands back a freshly-built Competitor bound to
// the caller's reply sink; it also tracks which competitors are currently
// live so the controller can drive their per-tick accounting.
type Manager struct {
	secrets map[string]string

	etfBook    *engine.OrderBook
	futureBook *engine.OrderBook
	tickSize   int64
	limits     Limits
	etfClamp   float64
	matchLog   matchevents.Recorder
	scoreLog   scoreboard.Recorder
	log        zerolog.Logger

	mu     sync.Mutex
	active map[string]*Competitor
}

// NewManager builds a roster over the given name->secret map and the
// shared exchange dependencies every competitor is wired against.
func NewManager(
	secrets map[string]string,
	etfBook, futureBook *engine.OrderBook,
	tickSize int64,
	limits Limits,
	etfClamp float64,
	matchLog matchevents.Recorder,
	scoreLog scoreboard.Recorder,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		secrets:    secrets,
		etfBook:    etfBook,
		futureBook: futureBook,
		tickSize:   tickSize,
		limits:     limits,
		etfClamp:   etfClamp,
		matchLog:   matchLog,
		scoreLog:   scoreLog,
		log:        log,
		active:     make(map[string]*Competitor),
	}
}

// Login authenticates name/secret against the configured roster. On
// success, builds a new Competitor bound to reply and registers it as
// active.
func (m *Manager) Login(name, secret string, reply ReplySink) (*Competitor, bool) {
	expected, known := m.secrets[name]
	if !known || expected != secret {
		return nil, false
	}

	c := New(name, secret, reply, m.matchLog, m.scoreLog, m.etfBook, m.futureBook,
		m.tickSize, m.limits, m.etfClamp, m.log.With().Str("competitor", name).Logger())

	m.mu.Lock()
	m.active[name] = c
	m.mu.Unlock()
	return c, true
}

// Logout removes a competitor from the active roster (connection closed,
// whether cleanly or via breach).
func (m *Manager) Logout(name string) {
	m.mu.Lock()
	delete(m.active, name)
	m.mu.Unlock()
}

// Active returns a snapshot slice of the currently logged-in competitors,
// for the controller's per-tick walk.
func (m *Manager) Active() []*Competitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Competitor, 0, len(m.active))
	for _, c := range m.active {
		out = append(out, c)
	}
	return out
}

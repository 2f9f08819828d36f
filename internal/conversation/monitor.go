package conversation

import (
	"sync"
	"time"
)

// State is the summarization posture of a channel.
type State int

// Monitor states.
const (
	// StateBelowThreshold: running estimate under the configured threshold.
	StateBelowThreshold State = iota

	// StateAtThreshold: the estimate has reached the threshold; the next
	// explicit trigger starts a summarization.
	StateAtThreshold

	// StateSummarizing: a summarization is in flight for the channel.
	StateSummarizing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateBelowThreshold:
		return "below_threshold"
	case StateAtThreshold:
		return "at_threshold"
	case StateSummarizing:
		return "summarizing"
	}
	return "unknown"
}

type channelState struct {
	state    State
	estimate int
	lastSeen time.Time
}

// Monitor tracks per-channel running token estimates and decides when
// history should be compressed. State is process-local and transient:
// losing it on restart at worst delays one summarization.
type Monitor struct {
	mu        sync.Mutex
	threshold int
	channels  map[string]*channelState
	now       func() time.Time
}

// NewMonitor creates a Monitor with the given token threshold.
// A threshold of 0 disables automatic promotion.
func NewMonitor(threshold int) *Monitor {
	return &Monitor{
		threshold: threshold,
		channels:  make(map[string]*channelState),
		now:       time.Now,
	}
}

// Observe records the authoritative running estimate for a channel and
// returns the resulting state. A channel not currently summarizing is
// promoted to AtThreshold when the estimate reaches the threshold, and
// demoted back below when it no longer does.
func (m *Monitor) Observe(channelID string, estimate int) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	cs.estimate = estimate
	if cs.state != StateSummarizing {
		if m.threshold > 0 && estimate >= m.threshold {
			cs.state = StateAtThreshold
		} else {
			cs.state = StateBelowThreshold
		}
	}
	return cs.state
}

// Add accumulates a delta into the channel's running estimate, applying the
// same promotion rule as Observe. Used on append for cheap bookkeeping
// between authoritative observations.
func (m *Monitor) Add(channelID string, delta int) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	cs.estimate += delta
	if cs.state != StateSummarizing && m.threshold > 0 && cs.estimate >= m.threshold {
		cs.state = StateAtThreshold
	}
	return cs.state
}

// Begin moves AtThreshold to Summarizing. Returns false when the channel is
// not at threshold; callers hold the channel lock, so false means the
// estimate is below threshold, not a race.
func (m *Monitor) Begin(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	if cs.state != StateAtThreshold {
		return false
	}
	cs.state = StateSummarizing
	return true
}

// ForceBegin moves any non-summarizing channel to Summarizing, for manual
// triggers. Returns false only if a summarization is already in flight.
func (m *Monitor) ForceBegin(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	if cs.state == StateSummarizing {
		return false
	}
	cs.state = StateSummarizing
	return true
}

// Complete finishes a summarization: the estimate resets to the given
// post-summarization figure and the channel returns to BelowThreshold
// (or straight back to AtThreshold if the reset estimate still crosses).
func (m *Monitor) Complete(channelID string, estimate int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	cs.estimate = estimate
	if m.threshold > 0 && estimate >= m.threshold {
		cs.state = StateAtThreshold
	} else {
		cs.state = StateBelowThreshold
	}
}

// Fail reverts Summarizing to AtThreshold with the estimate untouched.
// History was not modified, so the channel remains due for summarization.
func (m *Monitor) Fail(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreate(channelID)
	if cs.state == StateSummarizing {
		cs.state = StateAtThreshold
	}
}

// Reset clears all state for a channel, e.g. after a history clear.
func (m *Monitor) Reset(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channelID)
}

// StateOf returns the channel's current state; unknown channels are below
// threshold.
func (m *Monitor) StateOf(channelID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.channels[channelID]
	if !ok {
		return StateBelowThreshold
	}
	return cs.state
}

// Prune removes state for channels idle longer than maxIdle and returns how
// many were removed. Channels mid-summarization are never pruned.
func (m *Monitor) Prune(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	pruned := 0
	for id, cs := range m.channels {
		if cs.state != StateSummarizing && cs.lastSeen.Before(cutoff) {
			delete(m.channels, id)
			pruned++
		}
	}
	return pruned
}

func (m *Monitor) getOrCreate(channelID string) *channelState {
	cs, ok := m.channels[channelID]
	if !ok {
		cs = &channelState{}
		m.channels[channelID] = cs
	}
	cs.lastSeen = m.now()
	return cs
}

package worker

import (
	"time"

	"github.com/rs/zerolog/log"
)

const defaultIdleTTL = 30 * time.Minute

// purgeIdleSessions calls reapIdle whenever a reap interval passes.
func (m *Manager) purgeIdleSessions() {
	interval := m.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.reapIdle(m.now())
		}
	}
}

// reapIdle stops every session without activity for IdleTTL and returns how many it removed.
func (m *Manager) reapIdle(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTTL)

	var stale []*sessionState
	m.mu.Lock()
	for id, state := range m.sessions {
		if state.idleSince(cutoff) {
			delete(m.sessions, id)
			stale = append(stale, state)
		}
	}
	m.mu.Unlock()

	for _, state := range stale {
		state.stop()
	}
	if len(stale) > 0 {
		log.Debug().Int("count", len(stale)).Msg("reaped idle sessions")
	}
	return len(stale)
}

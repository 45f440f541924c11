package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session carries per-run context through the evaluation loop. One-shot
// logging flags live here instead of package-level state, so two engines in
// one process never share warn history.
type Session struct {
	id      string
	started time.Time
	warned  map[string]bool
	log     zerolog.Logger
}

// NewSession creates a session with a fresh identifier.
func NewSession(log zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		started: time.Now(),
		warned:  make(map[string]bool),
		log:     log.With().Str("session", id).Logger(),
	}
}

// ID returns the session identifier, also embedded in order tags.
func (s *Session) ID() string {
	return s.id
}

// Started returns the session start time.
func (s *Session) Started() time.Time {
	return s.started
}

// WarnOnce logs the message at warn level the first time the key is seen in
// this session, then stays silent for that key.
func (s *Session) WarnOnce(key, msg string) {
	if s.warned[key] {
		return
	}
	s.warned[key] = true
	s.log.Warn().Str("key", key).Msg(msg)
}

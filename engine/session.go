package engine

import "github.com/google/uuid"

// SessionID correlates every log line emitted by one ModelGenerator's
// lifetime (attached as the "session" field of its logger), mirroring the
// session-id idiom used for browser/shard sessions elsewhere in this corpus.
type SessionID string

// newSessionID mints a fresh, random SessionID.
func newSessionID() SessionID {
	return SessionID(uuid.New().String())
}

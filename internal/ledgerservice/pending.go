package ledgerservice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashwell/tally/internal/apperr"
	"github.com/ashwell/tally/internal/models"
)

// confirmTTL is how long a delete proposal stays confirmable.
const confirmTTL = 2 * time.Minute

type proposal struct {
	identifier string
	record     models.Record
	expires    time.Time
}

// pendingDeletes holds short-lived delete proposals keyed by token. A token
// is consumed exactly once; expired entries are pruned on access.
type pendingDeletes struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]proposal
}

func newPendingDeletes(ttl time.Duration) *pendingDeletes {
	return &pendingDeletes{ttl: ttl, m: make(map[string]proposal)}
}

func (p *pendingDeletes) add(identifier string, rec models.Record, now time.Time) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(now)

	token := uuid.NewString()
	p.m[token] = proposal{
		identifier: identifier,
		record:     rec,
		expires:    now.Add(p.ttl),
	}
	return token
}

func (p *pendingDeletes) take(token string, now time.Time) (proposal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prop, ok := p.m[token]
	delete(p.m, token)
	if !ok || now.After(prop.expires) {
		return proposal{}, apperr.ErrConfirmExpired
	}
	return prop, nil
}

func (p *pendingDeletes) pruneLocked(now time.Time) {
	for token, prop := range p.m {
		if now.After(prop.expires) {
			delete(p.m, token)
		}
	}
}

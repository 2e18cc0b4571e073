package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tribe-otp/internal/domain"
)

// CodeRepo keeps one-time codes in process memory. It backs local
// development and tests; records do not survive a restart.
type CodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.OneTimeCode
}

func NewCodeRepo() *CodeRepo {
	return &CodeRepo{codes: make(map[string]domain.OneTimeCode)}
}

func (r *CodeRepo) Put(ctx context.Context, c *domain.OneTimeCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[c.Identity] = *c
	return nil
}

func (r *CodeRepo) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[identity]
	if !ok {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *CodeRepo) IncrementAttempts(ctx context.Context, identity, codeID string, max int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[identity]
	if !ok || c.CodeID != codeID || c.Attempts >= max {
		return 0, fmt.Errorf("increment attempts: %w", domain.ErrConflict)
	}
	c.Attempts++
	r.codes[identity] = c
	return c.Attempts, nil
}

func (r *CodeRepo) Delete(ctx context.Context, identity, codeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.codes[identity]; ok && c.CodeID == codeID {
		delete(r.codes, identity)
	}
	return nil
}

// ListExpired returns expired records ordered by identity.
func (r *CodeRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OneTimeCode
	for _, c := range r.codes {
		if c.Expired(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

// Len reports the number of stored records, expired or not.
func (r *CodeRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

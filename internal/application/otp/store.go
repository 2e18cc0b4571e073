package otp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tribe-otp/internal/domain"
	"github.com/tribe-otp/internal/pkg/id"
	"github.com/tribe-otp/internal/pkg/keylock"
	"github.com/tribe-otp/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
	DefaultCodeLength  = 6
	DefaultOpTimeout   = 3 * time.Second

	// MaxTTL caps the code lifetime; backends expire records at ExpiresAt, so
	// nothing outlives createdAt+MaxTTL.
	MaxTTL = 10 * time.Minute

	// maxConflictRetries bounds the optimistic retry loop in Verify when the
	// backing store reports a concurrent write from another process.
	maxConflictRetries = 3
)

// Repository is the persistence contract the store needs. Conditional
// operations are keyed by (identity, codeID) so a replaced record is never
// touched by a stale caller.
type Repository interface {
	// Put stores c, replacing any record for c.Identity.
	Put(ctx context.Context, c *domain.OneTimeCode) error
	// Get returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, identity string) (*domain.OneTimeCode, error)
	// IncrementAttempts adds one attempt if the record still carries codeID and
	// has fewer than max attempts; otherwise it returns domain.ErrConflict.
	IncrementAttempts(ctx context.Context, identity, codeID string, max int) (int, error)
	// Delete removes the record if it still carries codeID. Missing records are not an error.
	Delete(ctx context.Context, identity, codeID string) error
	// ListExpired returns records whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]domain.OneTimeCode, error)
}

// Config is the code policy. Zero values fall back to the defaults above;
// Validate reports values NewStore would have to clamp.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	CodeLength  int
	OpTimeout   time.Duration
	HashCost    int
	Clock       clock.Clock
}

// Validate rejects a policy outside the supported bounds. Zero values are
// accepted and mean "use the default".
func (c Config) Validate() error {
	if c.TTL < 0 || c.TTL > MaxTTL {
		return fmt.Errorf("code ttl %s out of range (0, %s]", c.TTL, MaxTTL)
	}
	if c.CodeLength < 0 || c.CodeLength > token.MaxCodeLength {
		return fmt.Errorf("code length %d out of range 1..%d", c.CodeLength, token.MaxCodeLength)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts %d must not be negative", c.MaxAttempts)
	}
	return nil
}

// compareFunc matches bcrypt.CompareHashAndPassword.
type compareFunc func(hash, password []byte) error

// Store issues and verifies one-time codes, keeping at most one live code per
// identity and enforcing the attempt limit.
type Store struct {
	repo        Repository
	locks       *keylock.Locker
	clock       clock.Clock
	ttl         time.Duration
	maxAttempts int
	codeLength  int
	opTimeout   time.Duration
	hashCost    int

	compare compareFunc
	// dummyHash is compared against when there is no live record, so every
	// Verify outcome costs one bcrypt comparison.
	dummyHash []byte
}

// NewStore applies defaults and clamps out-of-range policy values; callers
// that want a hard failure run cfg.Validate first.
func NewStore(repo Repository, cfg Config) *Store {
	s := &Store{
		repo:        repo,
		locks:       keylock.New(),
		clock:       cfg.Clock,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		codeLength:  cfg.CodeLength,
		opTimeout:   cfg.OpTimeout,
		hashCost:    cfg.HashCost,
		compare:     bcrypt.CompareHashAndPassword,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.ttl > MaxTTL {
		slog.Warn("code ttl above maximum, clamping", "ttl", s.ttl, "max", MaxTTL)
		s.ttl = MaxTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.codeLength <= 0 || s.codeLength > token.MaxCodeLength {
		if s.codeLength != 0 {
			slog.Warn("code length out of range, using default", "length", s.codeLength, "default", DefaultCodeLength)
		}
		s.codeLength = DefaultCodeLength
	}
	if s.opTimeout <= 0 {
		s.opTimeout = DefaultOpTimeout
	}
	if s.hashCost < bcrypt.MinCost || s.hashCost > bcrypt.MaxCost {
		s.hashCost = bcrypt.DefaultCost
	}
	s.dummyHash = newDummyHash(s.hashCost)
	return s
}

func newDummyHash(cost int) []byte {
	code, err := token.NewNumericCode(DefaultCodeLength)
	if err != nil {
		code = "000000"
	}
	hash, err := bcrypt.GenerateFromPassword(digest(code), cost)
	if err != nil {
		slog.Error("dummy code hash unavailable", "err", err)
		return nil
	}
	return hash
}

// MaxAttempts returns the configured attempt limit.
func (s *Store) MaxAttempts() int { return s.maxAttempts }

// Issue creates a fresh code for identity and returns it in plaintext for
// delivery. Any previous code for identity stops working immediately.
func (s *Store) Issue(ctx context.Context, identity string) (string, error) {
	code, err := token.NewNumericCode(s.codeLength)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword(digest(code), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	now := s.clock.Now().UTC()
	rec := &domain.OneTimeCode{
		Identity:   identity,
		CodeID:     id.New(),
		SecretHash: string(hash),
		Attempts:   0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.put(ctx, rec); err != nil {
		return "", err
	}
	slog.Debug("issued one-time code", "identity", identity, "code_id", rec.CodeID, "expires_at", rec.ExpiresAt)
	return code, nil
}

// Verify checks submitted against the live code for identity. Expected
// outcomes are reported through the Result; the error is non-nil only for
// persistence faults and wraps domain.ErrStoreUnavailable.
func (s *Store) Verify(ctx context.Context, identity, submitted string) (domain.Result, error) {
	unlock := s.locks.Lock(identity)
	defer unlock()

	for i := 0; i < maxConflictRetries; i++ {
		res, err := s.verifyOnce(ctx, identity, submitted)
		if errors.Is(err, domain.ErrConflict) {
			slog.Debug("concurrent update on one-time code, retrying", "identity", identity, "attempt", i+1)
			continue
		}
		return res, err
	}
	return domain.ResultNotFound, fmt.Errorf("verify %s: too many concurrent updates: %w", identity, domain.ErrStoreUnavailable)
}

func (s *Store) verifyOnce(ctx context.Context, identity, submitted string) (domain.Result, error) {
	rec, err := s.get(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		s.matches(s.dummyHash, submitted)
		return domain.ResultNotFound, nil
	}
	if err != nil {
		return domain.ResultNotFound, err
	}

	if rec.Expired(s.clock.Now()) {
		s.matches(s.dummyHash, submitted)
		if err := s.delete(ctx, rec); err != nil {
			return domain.ResultNotFound, err
		}
		return domain.ResultExpired, nil
	}

	if rec.Attempts >= s.maxAttempts {
		if err := s.delete(ctx, rec); err != nil {
			return domain.ResultNotFound, err
		}
		slog.Info("one-time code locked out", "identity", identity, "code_id", rec.CodeID, "attempts", rec.Attempts)
		return domain.ResultAttemptsExceeded, nil
	}

	if _, err := s.increment(ctx, rec); err != nil {
		return domain.ResultNotFound, err
	}

	if !s.matches([]byte(rec.SecretHash), submitted) {
		return domain.ResultInvalidCode, nil
	}
	if err := s.delete(ctx, rec); err != nil {
		return domain.ResultNotFound, err
	}
	return domain.ResultSuccess, nil
}

// ExpireSweep deletes every record whose TTL has passed and returns how many
// were removed. Issue and Verify check expiry themselves, so the sweep only
// keeps abandoned records from piling up.
func (s *Store) ExpireSweep(ctx context.Context) (int, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	expired, err := s.repo.ListExpired(listCtx, s.clock.Now())
	cancel()
	if err != nil {
		return 0, unavailable("list expired codes", err)
	}

	removed := 0
	var firstErr error
	for i := range expired {
		rec := &expired[i]
		unlock := s.locks.Lock(rec.Identity)
		err := s.delete(ctx, rec)
		unlock()
		if err != nil {
			slog.Warn("failed to delete expired one-time code", "identity", rec.Identity, "code_id", rec.CodeID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// RunSweeper calls ExpireSweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.ExpireSweep(ctx)
			if err != nil {
				slog.Warn("expiry sweep incomplete", "removed", n, "err", err)
				continue
			}
			if n > 0 {
				slog.Info("expiry sweep removed one-time codes", "removed", n)
			}
		}
	}
}

func (s *Store) put(ctx context.Context, rec *domain.OneTimeCode) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.repo.Put(ctx, rec); err != nil {
		return unavailable("put code", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	rec, err := s.repo.Get(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get code", err)
	}
	return rec, nil
}

// increment passes domain.ErrConflict through untouched so Verify can retry.
func (s *Store) increment(ctx context.Context, rec *domain.OneTimeCode) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	n, err := s.repo.IncrementAttempts(ctx, rec.Identity, rec.CodeID, s.maxAttempts)
	if errors.Is(err, domain.ErrConflict) {
		return 0, err
	}
	if err != nil {
		return 0, unavailable("increment attempts", err)
	}
	return n, nil
}

func (s *Store) delete(ctx context.Context, rec *domain.OneTimeCode) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.repo.Delete(ctx, rec.Identity, rec.CodeID); err != nil {
		return unavailable("delete code", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// digest pre-hashes the code so bcrypt always sees a fixed 64-byte input,
// whatever the caller submitted.
func digest(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}

// matches compares in constant time; bcrypt does the final comparison with
// crypto/subtle over equal-length hashes.
func (s *Store) matches(secretHash []byte, submitted string) bool {
	err := s.compare(secretHash, digest(submitted))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		slog.Error("stored one-time code hash unusable", "err", err)
	}
	return err == nil
}

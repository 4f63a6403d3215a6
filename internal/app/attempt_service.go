package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// AttemptStore abstracts durable attempt storage (in-memory, Postgres).
type AttemptStore interface {
	InsertAttempt(ctx context.Context, ownerID string, summary domain.AttemptSummary) (domain.Attempt, error)
	FindAttemptsByOwner(ctx context.Context, ownerID string) ([]domain.Attempt, error)
	FindAllOwnersWithAttempts(ctx context.Context) ([]domain.OwnerAttempts, error)
}

// OwnerDirectory resolves caller identities to owner records.
type OwnerDirectory interface {
	FindByEmail(ctx context.Context, email string) (domain.Owner, error)
	Upsert(ctx context.Context, identity domain.Identity) (domain.Owner, error)
	Count(ctx context.Context) (int, error)
}

// EventPublisher announces recorded attempts to other systems.
type EventPublisher interface {
	PublishAttemptRecorded(ctx context.Context, owner domain.Owner, attempt domain.Attempt) error
}

// LeaderboardCache holds the last computed leaderboard between attempts.
type LeaderboardCache interface {
	Get(ctx context.Context) (domain.Leaderboard, bool, error)
	Set(ctx context.Context, lb domain.Leaderboard) error
	Invalidate(ctx context.Context) error
}

const leaderboardTimeout = 5 * time.Second

type AttemptServiceOption func(*AttemptService)

// WithPublisher attaches an event publisher.
func WithPublisher(p EventPublisher) AttemptServiceOption {
	return func(s *AttemptService) { s.publisher = p }
}

// WithLeaderboardCache serves repeated leaderboard reads from cache.
func WithLeaderboardCache(c LeaderboardCache) AttemptServiceOption {
	return func(s *AttemptService) { s.cache = c }
}

// WithAutoRegister creates unknown owners on first use instead of failing.
func WithAutoRegister(enabled bool) AttemptServiceOption {
	return func(s *AttemptService) { s.autoRegister = enabled }
}

// WithClock is used by tests for deterministic leaderboard timestamps.
func WithClock(now func() time.Time) AttemptServiceOption {
	return func(s *AttemptService) { s.now = now }
}

// AttemptService records finished sessions and serves the derived views.
type AttemptService struct {
	attempts     AttemptStore
	owners       OwnerDirectory
	publisher    EventPublisher
	cache        LeaderboardCache
	generation   atomic.Uint64
	autoRegister bool
	now          func() time.Time
	sf           singleflight.Group

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewAttemptService(attempts AttemptStore, owners OwnerDirectory, opts ...AttemptServiceOption) *AttemptService {
	s := &AttemptService{
		attempts:    attempts,
		owners:      owners,
		now:         time.Now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends one attempt for the caller. Duplicate submissions are stored
// as separate attempts.
func (s *AttemptService) Record(ctx context.Context, identity domain.Identity, summary domain.AttemptSummary) (domain.Attempt, error) {
	if identity.Email == "" {
		metrics.AttemptsRecorded.WithLabelValues(statusLabel(domain.ErrUnauthenticated)).Inc()
		return domain.Attempt{}, domain.ErrUnauthenticated
	}
	if err := ValidateSummary(summary); err != nil {
		metrics.AttemptsRecorded.WithLabelValues(statusLabel(err)).Inc()
		return domain.Attempt{}, err
	}
	owner, err := s.resolveOwner(ctx, identity)
	if err != nil {
		metrics.AttemptsRecorded.WithLabelValues(statusLabel(err)).Inc()
		return domain.Attempt{}, err
	}

	attempt, err := s.attempts.InsertAttempt(ctx, owner.ID, summary)
	if err != nil {
		metrics.AttemptsRecorded.WithLabelValues("error").Inc()
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	metrics.AttemptsRecorded.WithLabelValues("ok").Inc()
	log.Printf("recorded attempt %d for user %s (score %d)", attempt.ID, owner.ID, attempt.Score)

	s.generation.Add(1)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Printf("invalidate leaderboard cache: %v", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAttemptRecorded(ctx, owner, attempt); err != nil {
			log.Printf("publish attempt %d: %v", attempt.ID, err)
		}
	}
	s.refreshSubscribers(ctx)
	return attempt, nil
}

// ListAttempts returns the caller's attempts, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, identity domain.Identity) ([]domain.Attempt, error) {
	owner, err := s.resolveOwner(ctx, identity)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.FindAttemptsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	SortNewestFirst(attempts)
	return attempts, nil
}

// Stats aggregates the caller's attempts.
func (s *AttemptService) Stats(ctx context.Context, identity domain.Identity) (domain.Stats, error) {
	owner, err := s.resolveOwner(ctx, identity)
	if err != nil {
		return domain.Stats{}, err
	}
	attempts, err := s.attempts.FindAttemptsByOwner(ctx, owner.ID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("find attempts: %w", err)
	}
	return AggregateStats(attempts), nil
}

// Leaderboard ranks every stored attempt. Concurrent callers share a single
// in-flight computation; a configured cache is consulted first.
func (s *AttemptService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if s.cache != nil {
		lb, found, err := s.cache.Get(ctx)
		if err != nil {
			log.Printf("read leaderboard cache: %v", err)
		} else if found {
			return lb, nil
		}
	}

	result, err, _ := s.sf.Do("leaderboard", func() (interface{}, error) {
		// callers share the flight, so one caller going away must not fail the rest
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaderboardTimeout)
		defer cancel()

		gen := s.generation.Load()
		lb, err := s.computeLeaderboard(flightCtx)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		// an attempt recorded mid-computation makes lb stale for the cache
		if s.cache != nil && s.generation.Load() == gen {
			if err := s.cache.Set(flightCtx, lb); err != nil {
				log.Printf("write leaderboard cache: %v", err)
			}
		}
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

func (s *AttemptService) computeLeaderboard(ctx context.Context) (domain.Leaderboard, error) {
	start := time.Now()
	owners, err := s.attempts.FindAllOwnersWithAttempts(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("find owners with attempts: %w", err)
	}
	metrics.LeaderboardDuration.Observe(time.Since(start).Seconds())
	return domain.Leaderboard{
		Entries:   RankLeaderboard(owners, LeaderboardSize),
		UpdatedAt: s.now(),
	}, nil
}

// CountOwners returns the number of registered owners.
func (s *AttemptService) CountOwners(ctx context.Context) (int, error) {
	return s.owners.Count(ctx)
}

// RegisterOwner creates or refreshes the owner behind an identity.
func (s *AttemptService) RegisterOwner(ctx context.Context, identity domain.Identity) (domain.Owner, error) {
	if identity.Email == "" {
		return domain.Owner{}, domain.ErrUnauthenticated
	}
	return s.owners.Upsert(ctx, identity)
}

// Subscribe returns a channel receiving the leaderboard after every recorded
// attempt, starting with the current one. The caller must invoke cancel.
func (s *AttemptService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	metrics.LeaderboardSubscribers.Inc()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
			metrics.LeaderboardSubscribers.Dec()
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *AttemptService) refreshSubscribers(ctx context.Context) {
	s.mu.Lock()
	empty := len(s.subscribers) == 0
	s.mu.Unlock()
	if empty {
		return
	}

	// bypass the shared computation: one started before the insert would be stale
	lb, err := s.computeLeaderboard(ctx)
	if err != nil {
		log.Printf("refresh leaderboard subscribers: %v", err)
		return
	}
	s.broadcast(lb)
}

func (s *AttemptService) broadcast(lb domain.Leaderboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// slow subscriber: replace the oldest queued snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

func (s *AttemptService) resolveOwner(ctx context.Context, identity domain.Identity) (domain.Owner, error) {
	if identity.Email == "" {
		return domain.Owner{}, domain.ErrUnauthenticated
	}
	owner, err := s.owners.FindByEmail(ctx, identity.Email)
	if err == nil {
		return owner, nil
	}
	if errors.Is(err, domain.ErrOwnerNotFound) && s.autoRegister {
		return s.owners.Upsert(ctx, identity)
	}
	return domain.Owner{}, err
}

// ValidateSummary rejects impossible counters. Score may be negative.
func ValidateSummary(summary domain.AttemptSummary) error {
	switch {
	case summary.CorrectCount < 0:
		return fmt.Errorf("%w: correctAnswers must not be negative", domain.ErrValidation)
	case summary.WrongCount < 0:
		return fmt.Errorf("%w: wrongAnswers must not be negative", domain.ErrValidation)
	case summary.TimeSpentSeconds < 0:
		return fmt.Errorf("%w: timeSpent must not be negative", domain.ErrValidation)
	}
	return nil
}

// SortNewestFirst orders attempts by completion time, latest first.
func SortNewestFirst(attempts []domain.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CompletedAt.After(attempts[j].CompletedAt)
	})
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrOwnerNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

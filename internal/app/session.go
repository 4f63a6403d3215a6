package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/metrics"
)

const (
	DefaultSessionDuration = 600 * time.Second
	DefaultRevealDelay     = time.Second

	CorrectPoints = 10
	WrongPenalty  = 5

	persistTimeout = 2 * time.Second
)

// Phase is the lifecycle position of a quiz session.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseInProgress
	PhaseCompleted
	PhaseAbandoned
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseInProgress:
		return "in_progress"
	case PhaseCompleted:
		return "completed"
	case PhaseAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// QuestionSource produces the question batch for a new session.
type QuestionSource interface {
	FetchQuestionBatch(ctx context.Context, req domain.BatchRequest) ([]domain.Question, error)
}

// StateStore persists the in-progress snapshot of a single device.
type StateStore interface {
	Load(ctx context.Context) (domain.SessionState, bool, error)
	Save(ctx context.Context, state domain.SessionState) error
	Clear(ctx context.Context) error
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventResumed   EventKind = "resumed"
	EventTick      EventKind = "tick"
	EventAnswered  EventKind = "answered"
	EventAdvanced  EventKind = "advanced"
	EventSkipped   EventKind = "skipped"
	EventCompleted EventKind = "completed"
	EventAbandoned EventKind = "abandoned"
)

// SessionEvent is delivered to the change listener after every transition.
type SessionEvent struct {
	Kind  EventKind
	Phase Phase
	State domain.SessionState
}

// AnswerOutcome describes the effect of SelectAnswer.
type AnswerOutcome struct {
	Accepted      bool
	Correct       bool
	CorrectAnswer string
}

type SessionConfig struct {
	Source      QuestionSource
	Store       StateStore
	Ticker      Ticker
	Clock       Clock
	Batch       domain.BatchRequest
	Duration    time.Duration
	RevealDelay time.Duration

	// OnComplete receives the terminal summary exactly once.
	OnComplete func(domain.AttemptSummary)
	OnChange   func(SessionEvent)
}

// Session is the state machine of one quiz play-through on one device.
type Session struct {
	source      QuestionSource
	store       StateStore
	ticker      Ticker
	clock       Clock
	batch       domain.BatchRequest
	duration    int
	revealDelay time.Duration
	onComplete  func(domain.AttemptSummary)
	onChange    func(SessionEvent)

	mu      sync.Mutex
	phase   Phase
	state   domain.SessionState
	ticking bool
	pending Timer
	summary *domain.AttemptSummary
}

// outcome collects what must be emitted once the lock is released.
type outcome struct {
	events  []SessionEvent
	summary *domain.AttemptSummary
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Ticker == nil {
		cfg.Ticker = NewIntervalTicker(time.Second)
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultSessionDuration
	}
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = DefaultRevealDelay
	}
	return &Session{
		source:      cfg.Source,
		store:       cfg.Store,
		ticker:      cfg.Ticker,
		clock:       cfg.Clock,
		batch:       cfg.Batch,
		duration:    int(cfg.Duration / time.Second),
		revealDelay: cfg.RevealDelay,
		onComplete:  cfg.OnComplete,
		onChange:    cfg.OnChange,
		phase:       PhaseLoading,
	}
}

// Start restores the persisted snapshot if one exists, otherwise fetches a new
// batch. On fetch failure the session stays in PhaseLoading and Start may be
// retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseLoading {
		s.mu.Unlock()
		return domain.ErrSessionStarted
	}
	s.mu.Unlock()

	state, found, err := s.store.Load(ctx)
	if err != nil {
		log.Printf("discarding unreadable session state: %v", err)
		found = false
	} else if found {
		if err := state.Validate(s.duration); err != nil {
			log.Printf("discarding session state: %v", err)
			if err := s.store.Clear(ctx); err != nil {
				log.Printf("clear session state: %v", err)
			}
			found = false
		}
	}
	kind := EventResumed
	if !found {
		questions, err := s.source.FetchQuestionBatch(ctx, s.batch)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("%w: empty question batch", domain.ErrSourceUnavailable)
		}
		state = domain.SessionState{
			Questions:        questions,
			RemainingSeconds: s.duration,
			StartedAt:        s.clock.Now(),
		}
		kind = EventStarted
	}

	s.mu.Lock()
	if s.phase != PhaseLoading {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	s.phase = PhaseInProgress
	s.state = state

	var out outcome
	var startErr error
	if kind == EventStarted {
		startErr = s.persistLocked()
	}
	out.events = append(out.events, s.eventLocked(kind))

	switch {
	case s.state.RemainingSeconds <= 0:
		s.state.RemainingSeconds = 0
		s.completeLocked(true, &out)
	case s.state.CurrentIndex >= len(s.state.Questions):
		s.completeLocked(false, &out)
	default:
		if s.state.SelectedAnswer != nil {
			s.scheduleAdvanceLocked()
		}
		if err := s.startTickerLocked(); err != nil && startErr == nil {
			startErr = err
		}
	}
	s.mu.Unlock()

	s.flush(out)
	return startErr
}

// Tick decrements the countdown; it is ignored while an answer is being revealed.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.phase != PhaseInProgress || !s.ticking || s.state.SelectedAnswer != nil {
		s.mu.Unlock()
		return
	}

	var out outcome
	s.state.RemainingSeconds--
	if s.state.RemainingSeconds <= 0 {
		s.state.RemainingSeconds = 0
		s.completeLocked(true, &out)
	} else {
		if err := s.persistLocked(); err != nil {
			log.Printf("tick: %v", err)
		}
		out.events = append(out.events, s.eventLocked(EventTick))
	}
	s.mu.Unlock()

	s.flush(out)
}

// SelectAnswer locks in an answer for the current question. A second call
// before the question advances is a no-op reported as not accepted.
func (s *Session) SelectAnswer(answer string) (AnswerOutcome, error) {
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return AnswerOutcome{}, domain.ErrSessionNotActive
	}
	if s.state.SelectedAnswer != nil {
		s.mu.Unlock()
		return AnswerOutcome{}, nil
	}
	question := s.state.Questions[s.state.CurrentIndex]
	if !question.Offers(answer) {
		s.mu.Unlock()
		return AnswerOutcome{}, domain.ErrAnswerNotOffered
	}

	selected := answer
	s.state.SelectedAnswer = &selected
	correct := answer == question.CorrectAnswer
	if correct {
		s.state.Score += CorrectPoints
		s.state.CorrectCount++
	} else {
		s.state.Score -= WrongPenalty
		s.state.WrongCount++
	}
	err := s.persistLocked()
	s.scheduleAdvanceLocked()

	out := outcome{events: []SessionEvent{s.eventLocked(EventAnswered)}}
	s.mu.Unlock()

	s.flush(out)
	return AnswerOutcome{Accepted: true, Correct: correct, CorrectAnswer: question.CorrectAnswer}, err
}

// Skip moves past the current question without scoring it.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	if s.state.SelectedAnswer != nil {
		s.mu.Unlock()
		return domain.ErrAnswerPending
	}

	var out outcome
	var err error
	s.state.CurrentIndex++
	if s.state.CurrentIndex >= len(s.state.Questions) {
		s.completeLocked(false, &out)
	} else {
		err = s.persistLocked()
		out.events = append(out.events, s.eventLocked(EventSkipped))
	}
	s.mu.Unlock()

	s.flush(out)
	return err
}

// Abandon discards the session and its persisted state so the next Start
// begins from scratch.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	s.phase = PhaseAbandoned
	s.stopTickerLocked()
	s.cancelPendingLocked()
	err := s.store.Clear(ctx)
	out := outcome{events: []SessionEvent{s.eventLocked(EventAbandoned)}}
	s.mu.Unlock()

	metrics.SessionsFinished.WithLabelValues("abandoned").Inc()
	s.flush(out)
	if err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}

// Suspend stops the countdown without touching state, e.g. when the player
// leaves. Time spent away is not refunded on resume.
func (s *Session) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickerLocked()
}

// Resume restarts the countdown of a suspended session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress {
		return domain.ErrSessionNotActive
	}
	return s.startTickerLocked()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a copy of the current snapshot.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// CurrentQuestion is false once every question has been resolved.
func (s *Session) CurrentQuestion() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress || s.state.CurrentIndex >= len(s.state.Questions) {
		return domain.Question{}, false
	}
	return s.state.Questions[s.state.CurrentIndex], true
}

// Summary is available once the session is completed.
func (s *Session) Summary() (domain.AttemptSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return domain.AttemptSummary{}, false
	}
	return *s.summary, true
}

func (s *Session) advance(index int) {
	s.mu.Lock()
	if s.phase != PhaseInProgress || s.state.SelectedAnswer == nil || s.state.CurrentIndex != index {
		s.mu.Unlock()
		return
	}

	var out outcome
	s.pending = nil
	s.state.SelectedAnswer = nil
	s.state.CurrentIndex++
	if s.state.CurrentIndex >= len(s.state.Questions) {
		s.completeLocked(false, &out)
	} else {
		if err := s.persistLocked(); err != nil {
			log.Printf("advance: %v", err)
		}
		out.events = append(out.events, s.eventLocked(EventAdvanced))
	}
	s.mu.Unlock()

	s.flush(out)
}

func (s *Session) completeLocked(timedOut bool, out *outcome) {
	s.phase = PhaseCompleted
	s.stopTickerLocked()
	s.cancelPendingLocked()

	spent := s.duration
	if !timedOut {
		spent = int(s.clock.Now().Sub(s.state.StartedAt) / time.Second)
		if spent < 0 {
			spent = 0
		}
		if spent > s.duration {
			spent = s.duration
		}
	}
	summary := domain.AttemptSummary{
		Score:            s.state.Score,
		CorrectCount:     s.state.CorrectCount,
		WrongCount:       s.state.WrongCount,
		TimeSpentSeconds: spent,
	}
	s.summary = &summary

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Clear(ctx); err != nil {
		log.Printf("clear completed session state: %v", err)
	}

	reason := "completed"
	if timedOut {
		reason = "timeout"
	}
	metrics.SessionsFinished.WithLabelValues(reason).Inc()

	out.events = append(out.events, s.eventLocked(EventCompleted))
	out.summary = &summary
}

func (s *Session) scheduleAdvanceLocked() {
	s.cancelPendingLocked()
	index := s.state.CurrentIndex
	s.pending = s.clock.AfterFunc(s.revealDelay, func() {
		s.advance(index)
	})
}

func (s *Session) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Session) startTickerLocked() error {
	if s.ticking {
		return nil
	}
	if err := s.ticker.Start(s.Tick); err != nil {
		return fmt.Errorf("start ticker: %w", err)
	}
	s.ticking = true
	return nil
}

func (s *Session) stopTickerLocked() {
	if !s.ticking {
		return
	}
	s.ticker.Stop()
	s.ticking = false
}

func (s *Session) persistLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.state.Clone()); err != nil {
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}

func (s *Session) eventLocked(kind EventKind) SessionEvent {
	return SessionEvent{Kind: kind, Phase: s.phase, State: s.state.Clone()}
}

func (s *Session) flush(out outcome) {
	if s.onChange != nil {
		for _, ev := range out.events {
			s.onChange(ev)
		}
	}
	if out.summary != nil && s.onComplete != nil {
		s.onComplete(*out.summary)
	}
}

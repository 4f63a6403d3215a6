package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no valid caller identity is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation indicates a malformed attempt submission.
	ErrValidation = errors.New("invalid input data")
	// ErrOwnerNotFound is returned when the caller has no owner record.
	ErrOwnerNotFound = errors.New("user not found")
	// ErrSourceUnavailable indicates the question source could not produce a usable batch.
	ErrSourceUnavailable = errors.New("question source unavailable")
	// ErrRateLimited is the transient question source failure that is retried internally.
	ErrRateLimited = errors.New("question source rate limited")

	// ErrInvalidState marks a persisted session snapshot that breaks the session invariants.
	ErrInvalidState = errors.New("invalid session state")

	// ErrSessionStarted is returned when Start is called twice on one session.
	ErrSessionStarted = errors.New("quiz session already started")
	// ErrSessionNotActive is returned for input outside the InProgress phase.
	ErrSessionNotActive = errors.New("quiz session not in progress")
	// ErrAnswerPending rejects a skip while a selected answer is being revealed.
	ErrAnswerPending = errors.New("answer already selected for current question")
	// ErrAnswerNotOffered rejects an answer that is not one of the presented options.
	ErrAnswerNotOffered = errors.New("answer is not one of the presented options")
)

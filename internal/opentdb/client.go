package opentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/metrics"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultBaseURL = "https://opentdb.com/api.php"
	DefaultAmount  = 20

	maxRetries   = 3
	backoffStep  = time.Second
	choicesCount = 3

	// OpenTDB answers a burst with HTTP 429 and/or this response code.
	responseCodeRateLimit = 5
)

// RawQuestion mirrors the OpenTDB question payload.
type RawQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode *int          `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

// Client fetches question batches from OpenTDB.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timer      backoff.Timer
	step       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Client)

// WithBaseURL points the client at another endpoint (tests, mirrors).
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = raw }
}

// WithRand makes answer shuffling deterministic.
func WithRand(rnd *rand.Rand) Option {
	return func(c *Client) { c.rnd = rnd }
}

// WithRetryTimer replaces the timer that waits between retries.
func WithRetryTimer(t backoff.Timer) Option {
	return func(c *Client) { c.timer = t }
}

func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		step:       backoffStep,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuestionBatch returns decoded questions with a fixed shuffled answer order.
// Rate limiting is retried up to three times with a 1s, 2s, 3s schedule before
// the call fails with domain.ErrSourceUnavailable.
func (c *Client) FetchQuestionBatch(ctx context.Context, req domain.BatchRequest) ([]domain.Question, error) {
	reqURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var raw []RawQuestion
	operation := func() error {
		results, err := c.fetchOnce(ctx, reqURL)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = results
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.QuestionFetches.WithLabelValues("rate_limited").Inc()
		log.Printf("opentdb rate limited, retrying in %s", wait)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{step: c.step}, maxRetries), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer); err != nil {
		metrics.QuestionFetches.WithLabelValues("unavailable").Inc()
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, fmt.Errorf("%w: still rate limited after %d retries", domain.ErrSourceUnavailable, maxRetries)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, ctxErr)
		}
		return nil, err
	}

	questions := c.buildQuestions(raw)
	metrics.QuestionFetches.WithLabelValues("ok").Inc()
	return questions, nil
}

func (c *Client) buildURL(req domain.BatchRequest) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse opentdb url: %v", domain.ErrSourceUnavailable, err)
	}
	amount := req.Amount
	if amount <= 0 {
		amount = DefaultAmount
	}
	qs := u.Query()
	qs.Set("amount", strconv.Itoa(amount))
	if req.Category > 0 {
		qs.Set("category", strconv.Itoa(req.Category))
	}
	if req.Difficulty != "" {
		qs.Set("difficulty", req.Difficulty)
	}
	qType := req.Type
	if qType == "" {
		qType = "multiple"
	}
	qs.Set("type", qType)
	u.RawQuery = qs.Encode()
	return u.String(), nil
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) ([]RawQuestion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: opentdb returned status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrSourceUnavailable, err)
	}
	if payload.ResponseCode == nil {
		return nil, fmt.Errorf("%w: response_code missing", domain.ErrSourceUnavailable)
	}
	switch code := *payload.ResponseCode; {
	case code == responseCodeRateLimit:
		return nil, domain.ErrRateLimited
	case code != 0:
		return nil, fmt.Errorf("%w: opentdb response_code=%d", domain.ErrSourceUnavailable, code)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", domain.ErrSourceUnavailable)
	}
	for i, item := range payload.Results {
		if err := validate(item); err != nil {
			return nil, fmt.Errorf("%w: result %d: %v", domain.ErrSourceUnavailable, i, err)
		}
	}
	return payload.Results, nil
}

func validate(item RawQuestion) error {
	if strings.TrimSpace(item.Question) == "" {
		return errors.New("empty question")
	}
	if strings.TrimSpace(item.CorrectAnswer) == "" {
		return errors.New("empty correct answer")
	}
	if len(item.IncorrectAnswers) != choicesCount {
		return fmt.Errorf("expected %d incorrect answers, got %d", choicesCount, len(item.IncorrectAnswers))
	}
	return nil
}

func (c *Client) buildQuestions(raw []RawQuestion) []domain.Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	questions := make([]domain.Question, 0, len(raw))
	for _, item := range raw {
		questions = append(questions, BuildQuestion(item, c.rnd))
	}
	return questions
}

// BuildQuestion decodes HTML entities and shuffles the answer order once.
func BuildQuestion(raw RawQuestion, rnd *rand.Rand) domain.Question {
	correct := html.UnescapeString(raw.CorrectAnswer)
	distractors := make([]string, 0, len(raw.IncorrectAnswers))
	for _, incorrect := range raw.IncorrectAnswers {
		distractors = append(distractors, html.UnescapeString(incorrect))
	}

	presented := make([]string, 0, len(distractors)+1)
	presented = append(presented, correct)
	presented = append(presented, distractors...)
	rnd.Shuffle(len(presented), func(i, j int) {
		presented[i], presented[j] = presented[j], presented[i]
	})

	return domain.Question{
		Category:       html.UnescapeString(raw.Category),
		Difficulty:     raw.Difficulty,
		Prompt:         html.UnescapeString(raw.Question),
		CorrectAnswer:  correct,
		Distractors:    distractors,
		PresentedOrder: presented,
	}
}

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

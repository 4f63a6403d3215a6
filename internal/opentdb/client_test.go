package opentdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// instantTimer fires immediately and remembers every requested wait.
type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestClient(rt http.RoundTripper, timer *instantTimer) *Client {
	return NewClient(&http.Client{Transport: rt},
		WithRetryTimer(timer),
		WithRand(rand.New(rand.NewSource(1))),
	)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

const okBody = `{"response_code":0,"results":[
	{"category":"Science: Computers","type":"multiple","difficulty":"hard",
	 "question":"What does &quot;HTML&quot; stand for?",
	 "correct_answer":"Hypertext Markup Language",
	 "incorrect_answers":["Hyperlink &amp; Text","Home Tool Markup","Hyper Tabular Layout"]}
]}`

func TestFetchQuestionBatchBuildsQuery(t *testing.T) {
	var seen *http.Request
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return jsonResponse(http.StatusOK, okBody), nil
	}), newInstantTimer())

	_, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{
		Category:   18,
		Difficulty: "hard",
	})
	if err != nil {
		t.Fatalf("FetchQuestionBatch returned error: %v", err)
	}
	q := seen.URL.Query()
	if q.Get("amount") != "20" || q.Get("category") != "18" || q.Get("difficulty") != "hard" || q.Get("type") != "multiple" {
		t.Fatalf("unexpected query: %s", seen.URL.RawQuery)
	}
}

func TestFetchQuestionBatchDecodesAndShuffles(t *testing.T) {
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, okBody), nil
	}), newInstantTimer())

	questions, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{Amount: 1})
	if err != nil {
		t.Fatalf("FetchQuestionBatch returned error: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	q := questions[0]
	if q.Prompt != `What does "HTML" stand for?` {
		t.Fatalf("prompt not decoded: %q", q.Prompt)
	}
	if q.Distractors[0] != "Hyperlink & Text" {
		t.Fatalf("distractor not decoded: %q", q.Distractors[0])
	}
	if len(q.PresentedOrder) != 4 {
		t.Fatalf("expected 4 presented answers, got %d", len(q.PresentedOrder))
	}
	if !q.Offers(q.CorrectAnswer) {
		t.Fatalf("correct answer missing from presented order: %v", q.PresentedOrder)
	}
	for _, d := range q.Distractors {
		if !q.Offers(d) {
			t.Fatalf("distractor %q missing from presented order", d)
		}
	}
}

func TestFetchQuestionBatchRetriesRateLimitWithLinearBackoff(t *testing.T) {
	calls := 0
	timer := newInstantTimer()
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls <= 2 {
			return jsonResponse(http.StatusTooManyRequests, `{"response_code":5,"results":[]}`), nil
		}
		return jsonResponse(http.StatusOK, okBody), nil
	}), timer)

	questions, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{Amount: 1})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(questions) != 1 || calls != 3 {
		t.Fatalf("expected 3 calls and 1 question, got calls=%d questions=%d", calls, len(questions))
	}
	if len(timer.waits) != 2 || timer.waits[0] != time.Second || timer.waits[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", timer.waits)
	}
}

func TestFetchQuestionBatchGivesUpAfterThreeRetries(t *testing.T) {
	calls := 0
	timer := newInstantTimer()
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusTooManyRequests, ``), nil
	}), timer)

	_, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected initial call plus 3 retries, got %d calls", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(timer.waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, timer.waits)
	}
	for i := range want {
		if timer.waits[i] != want[i] {
			t.Fatalf("expected waits %v, got %v", want, timer.waits)
		}
	}
}

func TestFetchQuestionBatchResponseCodeRateLimitIsRetried(t *testing.T) {
	calls := 0
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return jsonResponse(http.StatusOK, `{"response_code":5,"results":[]}`), nil
		}
		return jsonResponse(http.StatusOK, okBody), nil
	}), newInstantTimer())

	if _, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestFetchQuestionBatchRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]*http.Response{
		"non-200":           jsonResponse(http.StatusBadGateway, ``),
		"not json":          jsonResponse(http.StatusOK, `not-json`),
		"missing code":      jsonResponse(http.StatusOK, `{"results":[]}`),
		"non-zero code":     jsonResponse(http.StatusOK, `{"response_code":1,"results":[]}`),
		"empty results":     jsonResponse(http.StatusOK, `{"response_code":0,"results":[]}`),
		"two distractors":   jsonResponse(http.StatusOK, `{"response_code":0,"results":[{"question":"q","correct_answer":"a","incorrect_answers":["b","c"]}]}`),
		"empty prompt":      jsonResponse(http.StatusOK, `{"response_code":0,"results":[{"question":" ","correct_answer":"a","incorrect_answers":["b","c","d"]}]}`),
		"empty correct ans": jsonResponse(http.StatusOK, `{"response_code":0,"results":[{"question":"q","correct_answer":"","incorrect_answers":["b","c","d"]}]}`),
	}

	for name, resp := range cases {
		resp := resp
		calls := 0
		client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return resp, nil
		}), newInstantTimer())

		_, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{})
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			t.Fatalf("%s: expected source unavailable, got %v", name, err)
		}
		if calls != 1 {
			t.Fatalf("%s: malformed payloads must not be retried, got %d calls", name, calls)
		}
	}
}

func TestFetchQuestionBatchTransportError(t *testing.T) {
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}), newInstantTimer())

	if _, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{}); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestFetchQuestionBatchBadURLIsSourceUnavailable(t *testing.T) {
	calls := 0
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, okBody), nil
	})

	client := NewClient(&http.Client{Transport: rt}, WithBaseURL("http://%zz"), WithRetryTimer(newInstantTimer()))
	if _, err := client.FetchQuestionBatch(context.Background(), domain.BatchRequest{}); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable for unparsable base url, got %v", err)
	}

	client = newTestClient(rt, newInstantTimer())
	if _, err := client.fetchOnce(context.Background(), "http://example.com/\x7f"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable for unbuildable request, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("no request should be sent, got %d", calls)
	}
}

func TestLinearBackOffSchedule(t *testing.T) {
	b := &linearBackOff{step: time.Second}
	for i := 1; i <= 3; i++ {
		if got := b.NextBackOff(); got != time.Duration(i)*time.Second {
			t.Fatalf("attempt %d: expected %ds, got %s", i, i, got)
		}
	}
	b.Reset()
	if got := b.NextBackOff(); got != time.Second {
		t.Fatalf("expected reset to restart at 1s, got %s", got)
	}
}

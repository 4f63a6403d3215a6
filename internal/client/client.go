package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"trivia-quiz-service/internal/domain"
)

var ErrServiceUnavailable = errors.New("quiz service unavailable")

// APIError is a non-2xx response. It unwraps to the matching domain error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case e.StatusCode == http.StatusBadRequest:
		return domain.ErrValidation
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrOwnerNotFound
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

// Client talks to the quiz HTTP API on behalf of one signed-in player.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, token: token}
}

type attemptCreated struct {
	Message string         `json:"message"`
	Attempt domain.Attempt `json:"attempt"`
}

type attemptsPayload struct {
	Attempts []domain.Attempt `json:"attempts"`
}

type leaderboardPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SubmitAttempt sends a terminal summary. It is safe to call again after a
// failure; every accepted call stores a separate attempt.
func (c *Client) SubmitAttempt(ctx context.Context, summary domain.AttemptSummary) (domain.Attempt, error) {
	var payload attemptCreated
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/attempt", summary, &payload); err != nil {
		return domain.Attempt{}, err
	}
	return payload.Attempt, nil
}

func (c *Client) Attempts(ctx context.Context) ([]domain.Attempt, error) {
	var payload attemptsPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/attempts", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Attempts, nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var payload leaderboardPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/leaderboard", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Leaderboard, nil
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/stats", nil, &stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: response.StatusCode}
		var payload errorPayload
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/client"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/file"
	"trivia-quiz-service/internal/infra/memory"
	infraredis "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/opentdb"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type playOptions struct {
	serverURL string
	token     string
	device    string
	offline   bool
	redis     bool
}

// NewPlayCmd runs one quiz session in the terminal and submits the result.
func NewPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a timed quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPlayCmd(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "http://127.0.0.1:8080", "quiz API base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token from the token command; without it results are not submitted")
	cmd.Flags().StringVar(&opts.device, "device", "default", "device name used to keep resumable progress apart")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use the built-in question set instead of OpenTDB")
	cmd.Flags().BoolVar(&opts.redis, "redis-state", false, "keep progress in Redis (redis.addr) instead of a local file")
	return cmd
}

// attemptSubmitter is satisfied by *client.Client.
type attemptSubmitter interface {
	SubmitAttempt(ctx context.Context, summary domain.AttemptSummary) (domain.Attempt, error)
}

func runPlayCmd(ctx context.Context, in io.Reader, out io.Writer, cfg config.Config, opts playOptions) error {
	var source app.QuestionSource
	if opts.offline {
		source = memory.NewStaticQuestionSource(memory.SampleQuestions())
	} else {
		var clientOpts []opentdb.Option
		if cfg.OpenTDB.BaseURL != "" {
			clientOpts = append(clientOpts, opentdb.WithBaseURL(cfg.OpenTDB.BaseURL))
		}
		timeout := config.TTLDuration(cfg.OpenTDB.Timeout, 10*time.Second)
		source = opentdb.NewClient(&http.Client{Timeout: timeout}, clientOpts...)
	}

	var store app.StateStore
	if opts.redis && cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		store = infraredis.NewStateStore(redisClient, opts.device, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		store = file.NewStateStore(filepath.Join(cfg.Quiz.StateDir, opts.device+".json"))
	}
	pending := file.NewPendingSummaryStore(filepath.Join(cfg.Quiz.StateDir, opts.device+".pending.json"))

	var submitter attemptSubmitter
	if opts.token != "" {
		submitter = client.New(opts.serverURL, opts.token, &http.Client{Timeout: 10 * time.Second})
	}

	p := newPlayer(in, out, submitter, pending)
	p.session = app.NewSession(p.sessionConfig(app.SessionConfig{
		Source: source,
		Store:  store,
		Ticker: app.NewIntervalTicker(time.Second),
		Batch: domain.BatchRequest{
			Amount:     cfg.OpenTDB.Amount,
			Category:   cfg.OpenTDB.Category,
			Difficulty: cfg.OpenTDB.Difficulty,
			Type:       "multiple",
		},
		Duration:    config.TTLDuration(cfg.Quiz.Duration, app.DefaultSessionDuration),
		RevealDelay: config.TTLDuration(cfg.Quiz.RevealDelay, app.DefaultRevealDelay),
	}))
	return p.run(ctx)
}

// player drives one session from line-based input.
type player struct {
	session   *app.Session
	submitter attemptSubmitter
	pending   *file.PendingSummaryStore

	lines     <-chan string
	redraw    chan struct{}
	completed chan domain.AttemptSummary

	outMu sync.Mutex
	out   io.Writer
}

func newPlayer(in io.Reader, out io.Writer, submitter attemptSubmitter, pending *file.PendingSummaryStore) *player {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return &player{
		submitter: submitter,
		pending:   pending,
		lines:     lines,
		redraw:    make(chan struct{}, 1),
		completed: make(chan domain.AttemptSummary, 1),
		out:       out,
	}
}

// sessionConfig hooks the player into the session callbacks.
func (p *player) sessionConfig(cfg app.SessionConfig) app.SessionConfig {
	cfg.OnChange = p.onChange
	cfg.OnComplete = p.onComplete
	return cfg
}

func (p *player) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *player) onChange(ev app.SessionEvent) {
	switch ev.Kind {
	case app.EventStarted, app.EventResumed, app.EventAdvanced, app.EventSkipped:
		select {
		case p.redraw <- struct{}{}:
		default:
		}
	case app.EventTick:
		left := ev.State.RemainingSeconds
		if left%60 == 0 || left <= 10 {
			p.printf("[%s left]\n", formatClock(left))
		}
	}
}

func (p *player) onComplete(summary domain.AttemptSummary) {
	p.completed <- summary
}

func (p *player) run(ctx context.Context) error {
	if err := p.submitPending(ctx); err != nil {
		return err
	}
	if err := p.start(ctx); err != nil {
		return err
	}
	p.printf("Answer with a letter, 's' to skip, 'q' to pause and quit, 'abandon' to start over next time.\n")

	// input is read only while a question is on screen and unanswered
	var lines <-chan string
	for {
		select {
		case <-ctx.Done():
			p.session.Suspend()
			p.printf("\nProgress saved. Run play again to resume.\n")
			return nil
		case <-p.redraw:
			if q, ok := p.session.CurrentQuestion(); ok {
				p.printQuestion(q)
				lines = p.lines
			}
		case summary := <-p.completed:
			return p.finish(ctx, summary)
		case line, ok := <-lines:
			if !ok {
				p.session.Suspend()
				p.printf("\nProgress saved. Run play again to resume.\n")
				return nil
			}
			done, waitReveal, err := p.handle(ctx, line)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			if waitReveal {
				lines = nil
			}
		}
	}
}

func (p *player) start(ctx context.Context) error {
	for {
		err := p.session.Start(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			return err
		}
		p.printf("Could not load questions: %v\n", err)
		retry, ok := p.confirm("Retry? (y/n): ")
		if !ok || !retry {
			return err
		}
	}
}

func (p *player) handle(ctx context.Context, line string) (done, waitReveal bool, err error) {
	cmd := strings.ToLower(line)
	switch cmd {
	case "":
		return false, false, nil
	case "q", "quit":
		p.session.Suspend()
		p.printf("Progress saved. Run play again to resume.\n")
		return true, false, nil
	case "abandon":
		if err := p.session.Abandon(ctx); err != nil {
			return false, false, err
		}
		p.printf("Quiz abandoned.\n")
		return true, false, nil
	case "s", "skip":
		if err := p.session.Skip(); err != nil {
			if errors.Is(err, domain.ErrAnswerPending) {
				return false, false, nil
			}
			p.printf("warning: %v\n", err)
		}
		return false, false, nil
	}

	q, ok := p.session.CurrentQuestion()
	if !ok {
		return false, false, nil
	}
	idx := letterIndex(cmd, len(q.PresentedOrder))
	if idx < 0 {
		p.printf("Please enter a letter A-%c, 's', 'q' or 'abandon'.\n", 'A'+rune(len(q.PresentedOrder)-1))
		return false, false, nil
	}
	outcome, err := p.session.SelectAnswer(q.PresentedOrder[idx])
	if err != nil && !outcome.Accepted {
		p.printf("warning: %v\n", err)
		return false, false, nil
	}
	if err != nil {
		p.printf("warning: %v\n", err)
	}
	if !outcome.Accepted {
		return false, false, nil
	}
	if outcome.Correct {
		p.printf("Correct! (+%d)\n", app.CorrectPoints)
	} else {
		p.printf("Wrong (-%d). Correct answer was %s\n", app.WrongPenalty, outcome.CorrectAnswer)
	}
	return false, true, nil
}

func (p *player) finish(ctx context.Context, summary domain.AttemptSummary) error {
	p.printf("\nQuiz complete!\nScore: %d\nCorrect: %d  Wrong: %d\nTime: %s\n",
		summary.Score, summary.CorrectCount, summary.WrongCount, formatClock(summary.TimeSpentSeconds))

	if p.submitter == nil {
		p.printf("Not signed in (no --token); result was not submitted.\n")
		return nil
	}
	return p.submit(ctx, summary)
}

// submit keeps offering a manual retry; a summary the player gives up on is
// kept on disk and offered again on the next run.
func (p *player) submit(ctx context.Context, summary domain.AttemptSummary) error {
	for {
		attempt, err := p.submitter.SubmitAttempt(ctx, summary)
		if err == nil {
			if clearErr := p.pending.Clear(); clearErr != nil {
				p.printf("warning: %v\n", clearErr)
			}
			p.printf("Result saved (attempt %d).\n", attempt.ID)
			return nil
		}
		p.printf("Could not save result: %v\n", err)
		if errors.Is(err, domain.ErrUnauthenticated) {
			p.printf("Your session token is no longer valid; sign in again with the token command.\n")
		}
		retry, ok := p.confirm("Retry submission? (y/n): ")
		if !ok || !retry {
			if saveErr := p.pending.Save(summary); saveErr != nil {
				return saveErr
			}
			p.printf("Result kept for the next run.\n")
			return nil
		}
	}
}

func (p *player) submitPending(ctx context.Context) error {
	if p.submitter == nil {
		return nil
	}
	summary, found, err := p.pending.Load()
	if err != nil {
		log.Printf("discarding unreadable pending result: %v", err)
		if clearErr := p.pending.Clear(); clearErr != nil {
			log.Printf("clear pending result: %v", clearErr)
		}
		return nil
	}
	if !found {
		return nil
	}
	p.printf("Submitting a result from an earlier run (score %d)...\n", summary.Score)
	return p.submit(ctx, summary)
}

func (p *player) confirm(prompt string) (bool, bool) {
	for {
		p.printf("%s", prompt)
		line, ok := <-p.lines
		if !ok {
			return false, false
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, true
		case "n", "no":
			return false, true
		}
	}
}

func (p *player) printQuestion(q domain.Question) {
	state := p.session.State()
	var b strings.Builder
	fmt.Fprintf(&b, "\nQ%d/%d [%s] score %d\n%s\n", state.CurrentIndex+1, len(state.Questions), formatClock(state.RemainingSeconds), state.Score, q.Prompt)
	for i, option := range q.PresentedOrder {
		fmt.Fprintf(&b, "  %c. %s\n", 'A'+rune(i), option)
	}
	p.printf("%s", b.String())
}

func letterIndex(input string, options int) int {
	if len(input) != 1 {
		return -1
	}
	idx := int(strings.ToUpper(input)[0] - 'A')
	if idx < 0 || idx >= options {
		return -1
	}
	return idx
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

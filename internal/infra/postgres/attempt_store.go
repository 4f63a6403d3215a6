package postgres

import (
	"context"
	"fmt"
	"time"

	"trivia-quiz-service/internal/domain"

	"github.com/uptrace/bun"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string         `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email     string         `bun:"email,notnull,unique"`
	Name      *string        `bun:"name"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Attempts  []attemptModel `bun:"rel:has-many,join:id=user_id"`
}

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID             int64     `bun:"id,pk,autoincrement"`
	UserID         string    `bun:"user_id,type:uuid,notnull"`
	Score          int       `bun:"score,notnull"`
	CorrectAnswers int       `bun:"correct_answers,notnull"`
	WrongAnswers   int       `bun:"wrong_answers,notnull"`
	TimeSpent      int       `bun:"time_spent,notnull"`
	CompletedAt    time.Time `bun:"completed_at,nullzero,notnull,default:current_timestamp"`
}

func (m attemptModel) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:               m.ID,
		OwnerID:          m.UserID,
		Score:            m.Score,
		CorrectCount:     m.CorrectAnswers,
		WrongCount:       m.WrongAnswers,
		TimeSpentSeconds: m.TimeSpent,
		CompletedAt:      m.CompletedAt,
	}
}

func (m userModel) toOwner() domain.Owner {
	owner := domain.Owner{ID: m.ID, Email: m.Email}
	if m.Name != nil {
		owner.DisplayName = *m.Name
	}
	return owner
}

// AttemptStore persists quiz attempts through bun models.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) InsertAttempt(ctx context.Context, ownerID string, summary domain.AttemptSummary) (domain.Attempt, error) {
	model := &attemptModel{
		UserID:         ownerID,
		Score:          summary.Score,
		CorrectAnswers: summary.CorrectCount,
		WrongAnswers:   summary.WrongCount,
		TimeSpent:      summary.TimeSpentSeconds,
	}
	if _, err := s.db.NewInsert().Model(model).Returning("*").Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("insert quiz attempt: %w", err)
	}
	return model.toDomain(), nil
}

func (s *AttemptStore) FindAttemptsByOwner(ctx context.Context, ownerID string) ([]domain.Attempt, error) {
	var models []attemptModel
	err := s.db.NewSelect().
		Model(&models).
		Where("user_id = ?", ownerID).
		Order("completed_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select quiz attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// FindAllOwnersWithAttempts loads every user with their attempts in insertion order.
func (s *AttemptStore) FindAllOwnersWithAttempts(ctx context.Context) ([]domain.OwnerAttempts, error) {
	var users []userModel
	err := s.db.NewSelect().
		Model(&users).
		Relation("Attempts", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("qa.id ASC")
		}).
		Order("u.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select users with attempts: %w", err)
	}
	out := make([]domain.OwnerAttempts, 0, len(users))
	for _, u := range users {
		attempts := make([]domain.Attempt, 0, len(u.Attempts))
		for _, a := range u.Attempts {
			attempts = append(attempts, a.toDomain())
		}
		out = append(out, domain.OwnerAttempts{Owner: u.toOwner(), Attempts: attempts})
	}
	return out, nil
}

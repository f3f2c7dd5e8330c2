// Package scores is the global high-score board.
package scores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidScore = errors.New("invalid input: playerName and a non-negative score are required")
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Score struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	PlayerName string    `gorm:"not null" json:"playerName"`
	Score      int       `gorm:"not null;index" json:"score"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}

type Repository interface {
	Save(ctx context.Context, s Score) error
	// Top returns up to limit scores, highest first.
	Top(ctx context.Context, limit int) ([]Score, error)
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) SaveScore(ctx context.Context, playerName string, score int) (string, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" || score < 0 {
		return "", ErrInvalidScore
	}
	entry := Score{
		ID:         uuid.NewString(),
		PlayerName: playerName,
		Score:      score,
		Timestamp:  s.now().UTC(),
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		return "", err
	}
	s.logger.Info("score saved", zap.String("id", entry.ID), zap.Int("score", score))
	return entry.ID, nil
}

func (s *Service) TopScores(ctx context.Context, limit int) ([]Score, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}
	return s.repo.Top(ctx, limit)
}

package dream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("dream not found")
	ErrValidation = errors.New("invalid dream")
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type Service struct {
	DB     *gorm.DB
	Events Publisher
	Log    *zap.Logger
}

type CreateInput struct {
	Title               string
	Description         string
	MotivationStatement string
	Deadline            time.Time
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Dream, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if !in.Deadline.After(time.Now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}

	d := Dream{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Title:               in.Title,
		Description:         strings.TrimSpace(in.Description),
		MotivationStatement: strings.TrimSpace(in.MotivationStatement),
		Deadline:            in.Deadline.UTC(),
		Status:              StatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, "dream.created", map[string]any{
		"dreamId":  d.ID,
		"userId":   userID,
		"title":    d.Title,
		"deadline": d.Deadline.Format(time.RFC3339),
	}); err != nil {
		s.Log.Error("publish dream.created failed", zap.String("dream_id", d.ID), zap.Error(err))
	}
	return &d, nil
}

func (s *Service) Complete(ctx context.Context, userID, dreamID string) (*Dream, error) {
	var d Dream
	err := s.DB.WithContext(ctx).First(&d, "id = ? AND user_id = ?", dreamID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if d.Status == StatusCompleted {
		return &d, nil
	}

	if err := s.DB.WithContext(ctx).Model(&d).Update("status", StatusCompleted).Error; err != nil {
		return nil, err
	}
	d.Status = StatusCompleted

	if err := s.Events.Publish(ctx, "dream.completed", map[string]any{
		"dreamId": d.ID,
		"userId":  userID,
	}); err != nil {
		s.Log.Error("publish dream.completed failed", zap.String("dream_id", d.ID), zap.Error(err))
	}
	return &d, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"classpoll/internal/domain/poll"
	classpoll_errors "classpoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) Create(ctx context.Context, p *poll.Poll) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return classpoll_errors.ErrConflict
		}
		return fmt.Errorf("%w: create poll: %v", classpoll_errors.ErrStorage, res.Error)
	}
	return nil
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", orderedOptions).
		First(&p, "id = ?", id).Error
	if err != nil {
		if isNotFound(err) {
			return poll.Poll{}, classpoll_errors.ErrNotFound
		}
		return poll.Poll{}, fmt.Errorf("%w: get poll: %v", classpoll_errors.ErrStorage, err)
	}
	return p, nil
}

func (r *PostgresPollRepository) GetActive(ctx context.Context) (poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", orderedOptions).
		Where("status = ?", poll.StatusActive).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		if isNotFound(err) {
			return poll.Poll{}, classpoll_errors.ErrNotFound
		}
		return poll.Poll{}, fmt.Errorf("%w: get active poll: %v", classpoll_errors.ErrStorage, err)
	}
	return p, nil
}

func (r *PostgresPollRepository) ListByStatus(ctx context.Context, status poll.Status, limit int) ([]poll.Poll, error) {
	var polls []poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", orderedOptions).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&polls).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list polls: %v", classpoll_errors.ErrStorage, err)
	}
	return polls, nil
}

func (r *PostgresPollRepository) MarkEnded(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("id = ? AND status = ?", id, poll.StatusActive).
		Updates(map[string]interface{}{
			"status":   poll.StatusEnded,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: end poll: %v", classpoll_errors.ErrStorage, res.Error)
	}
	return res.RowsAffected == 1, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"classpoll/internal/domain/poll"
	classpoll_errors "classpoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresResponseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &PostgresResponseRepository{db: db}
}

func (r *PostgresResponseRepository) Exists(ctx context.Context, pollID uuid.UUID, studentName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poll.Response{}).
		Where("poll_id = ? AND student_name = ?", pollID, studentName).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: check response: %v", classpoll_errors.ErrStorage, err)
	}
	return count > 0, nil
}

func (r *PostgresResponseRepository) CountByPoll(ctx context.Context, pollID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poll.Response{}).
		Where("poll_id = ?", pollID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count responses: %v", classpoll_errors.ErrStorage, err)
	}
	return count, nil
}

func (r *PostgresResponseRepository) CountByPolls(ctx context.Context, pollIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(pollIDs))
	if len(pollIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PollID uuid.UUID
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&poll.Response{}).
		Select("poll_id, COUNT(*) AS total").
		Where("poll_id IN ?", pollIDs).
		Group("poll_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count responses: %v", classpoll_errors.ErrStorage, err)
	}
	for _, row := range rows {
		counts[row.PollID] = row.Total
	}
	return counts, nil
}

func (r *PostgresResponseRepository) RecordVote(ctx context.Context, resp *poll.Response) (poll.Poll, error) {
	var updated poll.Poll
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(resp).Error; err != nil {
			if isUniqueViolation(err) {
				return classpoll_errors.ErrDuplicateVote
			}
			return err
		}

		res := tx.Model(&poll.PollOption{}).
			Where("poll_id = ? AND position = ?", resp.PollID, resp.OptionIndex).
			Where("EXISTS (SELECT 1 FROM polls WHERE polls.id = poll_options.poll_id AND polls.status = ?)", poll.StatusActive).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return classpoll_errors.ErrInvalidState
		}

		return tx.Preload("Options", orderedOptions).First(&updated, "id = ?", resp.PollID).Error
	})
	if err != nil {
		if errors.Is(err, classpoll_errors.ErrDuplicateVote) || errors.Is(err, classpoll_errors.ErrInvalidState) {
			return poll.Poll{}, err
		}
		return poll.Poll{}, fmt.Errorf("%w: record vote: %v", classpoll_errors.ErrStorage, err)
	}
	return updated, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

// SetStatusOptions carries caller context for SetTaskStatus.
type SetStatusOptions struct {
	// ActorID, when non-zero, must own the task.
	ActorID uint
	// LastTaskOfPlan bumps the originating template's likes after a completion.
	LastTaskOfPlan bool
}

// ScoringService moves tasks between pending and done and keeps the owner's
// balance in step with every transition.
type ScoringService struct {
	repos *repository.Repositories
	now   Clock
}

func NewScoringService(repos *repository.Repositories, now Clock) *ScoringService {
	if now == nil {
		now = time.Now
	}
	return &ScoringService{repos: repos, now: now}
}

// SetTaskStatus applies the requested status. Points move only when the stored
// status actually changes, and always in the same transaction as the status write.
// Tasks of an inactive plan are frozen: any change returns ErrConflict.
func (s *ScoringService) SetTaskStatus(ctx context.Context, taskID uint, status model.TaskStatus, opts SetStatusOptions) (*model.TaskInstance, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var (
		task      *model.TaskInstance
		completed bool
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		current, err := tx.Instances.FindTask(ctx, taskID)
		if err != nil {
			return notFound(err, fmt.Sprintf("task %d", taskID), ErrScoringFailed)
		}
		if opts.ActorID != 0 && current.UserID != opts.ActorID {
			return fmt.Errorf("%w: task %d belongs to another user", ErrForbidden, taskID)
		}

		if current.Status != status {
			held, err := tx.Instances.HoldActivePlan(ctx, current.PlanInstanceID, s.now())
			if err != nil {
				return err
			}
			if !held {
				return fmt.Errorf("%w: plan %d is finished", ErrConflict, current.PlanInstanceID)
			}
		}

		switch status {
		case model.TaskStatusDone:
			completed, err = s.complete(ctx, tx, current)
		case model.TaskStatusPending:
			err = s.revert(ctx, tx, current)
		}
		if err != nil {
			return err
		}

		task, err = tx.Instances.FindTask(ctx, taskID)
		return err
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: task %d: %v", ErrScoringFailed, taskID, err)
	}

	if completed && opts.LastTaskOfPlan {
		s.bumpLikes(ctx, task)
	}
	return task, nil
}

func (s *ScoringService) complete(ctx context.Context, tx *repository.Repositories, task *model.TaskInstance) (bool, error) {
	if task.Status == model.TaskStatusDone {
		return false, nil
	}
	if task.PenaltyApplied {
		return false, fmt.Errorf("%w: task %d was already penalized", ErrConflict, task.ID)
	}

	award := AwardFor(*task)
	won, err := tx.Instances.MarkDone(ctx, task.ID, award, s.now())
	if err != nil {
		return false, err
	}
	if !won {
		fresh, err := tx.Instances.FindTask(ctx, task.ID)
		if err != nil {
			return false, err
		}
		if fresh.Status != model.TaskStatusDone && fresh.PenaltyApplied {
			return false, fmt.Errorf("%w: task %d was penalized concurrently", ErrConflict, task.ID)
		}
		return false, nil
	}
	if err := tx.Users.AddPoints(ctx, task.UserID, award); err != nil {
		return false, err
	}
	logger.Debug("task completed", "task", task.ID, "user", task.UserID, "award", award)
	return true, nil
}

func (s *ScoringService) revert(ctx context.Context, tx *repository.Repositories, task *model.TaskInstance) error {
	if task.Status == model.TaskStatusPending {
		return nil
	}

	refund := task.AwardedPoints
	won, err := tx.Instances.MarkPending(ctx, task.ID)
	if err != nil || !won {
		return err
	}
	if refund == 0 {
		return nil
	}
	if err := tx.Users.AddPoints(ctx, task.UserID, -refund); err != nil {
		return err
	}
	logger.Debug("task reverted", "task", task.ID, "user", task.UserID, "refund", refund)
	return nil
}

func (s *ScoringService) bumpLikes(ctx context.Context, task *model.TaskInstance) {
	plan, err := s.repos.Instances.FindPlan(ctx, task.PlanInstanceID)
	if err != nil {
		logger.Warn("likes update skipped", "task", task.ID, "err", err)
		return
	}
	if plan.TemplatePlanID == nil {
		return
	}
	if err := s.repos.Templates.IncrementLikes(ctx, *plan.TemplatePlanID); err != nil {
		logger.Warn("likes update failed", "template", *plan.TemplatePlanID, "err", err)
	}
}

func isServiceError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrScoringFailed, ErrInvalidStatus} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

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

// Penalty describes one committed debit, handed to PenaltyNotifier.
type Penalty struct {
	UserID    uint
	PlanID    uint
	PlanTitle string
	TaskCount int
	Points    int
	Reference time.Time
}

// PenaltyNotifier is told about every plan the sweep penalized.
type PenaltyNotifier interface {
	NotifyPenalty(ctx context.Context, p Penalty)
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Reference     time.Time
	Expired       int
	Deactivated   int
	Penalized     int
	PointsDebited int
	Failed        int
}

// SweepService closes out expired plan instances and debits missed mandatory
// tasks once.
type SweepService struct {
	repos    *repository.Repositories
	locker   Locker
	notifier PenaltyNotifier
	now      Clock
	loc      *time.Location
}

func NewSweepService(repos *repository.Repositories, locker Locker, now Clock, loc *time.Location) *SweepService {
	if locker == nil {
		locker = &LocalLocker{}
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &SweepService{repos: repos, locker: locker, now: now, loc: loc}
}

// SetNotifier registers the receiver of penalty events. Nil disables them.
func (s *SweepService) SetNotifier(n PenaltyNotifier) {
	s.notifier = n
}

// RunDaily sweeps with today as the reference day. It is the scheduler entry point.
func (s *SweepService) RunDaily(ctx context.Context) {
	report, err := s.Run(ctx, s.now())
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			logger.Warn("sweep skipped", "reason", err)
			return
		}
		logger.Error("sweep failed", "err", err)
		return
	}
	logger.Info("sweep finished",
		"reference", report.Reference.Format("2006-01-02"),
		"expired", report.Expired,
		"deactivated", report.Deactivated,
		"penalized", report.Penalized,
		"debited", report.PointsDebited,
		"failed", report.Failed)
}

// Run processes every active instance whose last task day is before the
// calendar day of reference. Each instance commits on its own; a failing one
// is counted and logged and the batch continues.
func (s *SweepService) Run(ctx context.Context, reference time.Time) (SweepReport, error) {
	day := DayStart(reference, s.loc)
	report := SweepReport{Reference: day}

	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return report, err
	}
	if !ok {
		return report, ErrSweepInProgress
	}
	defer release()

	plans, err := s.repos.Instances.ListExpired(ctx, day)
	if err != nil {
		return report, err
	}
	report.Expired = len(plans)

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		penalty, deactivated, err := s.sweepPlan(ctx, plan, day)
		if err != nil {
			report.Failed++
			logger.Error("sweep item failed", "plan", plan.ID, "user", plan.UserID,
				"err", fmt.Errorf("%w: %v", ErrSweepItemFailed, err))
			continue
		}
		if !deactivated {
			continue
		}
		report.Deactivated++
		if penalty.Points > 0 {
			report.Penalized++
			report.PointsDebited += penalty.Points
			if s.notifier != nil {
				s.notifier.NotifyPenalty(ctx, penalty)
			}
		}
	}
	return report, nil
}

func (s *SweepService) sweepPlan(ctx context.Context, plan model.PlanInstance, day time.Time) (Penalty, bool, error) {
	penalty := Penalty{
		UserID:    plan.UserID,
		PlanID:    plan.ID,
		PlanTitle: plan.Title,
		Reference: day,
	}
	var deactivated bool

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		won, err := tx.Instances.DeactivateIfActive(ctx, plan.ID, s.now())
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		deactivated = true

		flagged, err := tx.Instances.MarkPenalized(ctx, plan.ID, day)
		if err != nil {
			return err
		}
		if flagged == 0 {
			return nil
		}
		penalty.TaskCount = int(flagged)
		penalty.Points = int(flagged) * PenaltyPerTask
		return tx.Users.AddPoints(ctx, plan.UserID, -penalty.Points)
	})
	if err != nil {
		return Penalty{}, false, err
	}
	if deactivated {
		logger.Info("plan expired", "plan", plan.ID, "user", plan.UserID,
			"tasks", penalty.TaskCount, "penalty", penalty.Points)
	}
	return penalty, deactivated, nil
}

package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"plan-tracker/internal/model"
)

func openTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "plantracker-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepositories(db)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedUser(t *testing.T, repos *Repositories, name string) *model.User {
	t.Helper()
	user := &model.User{Username: name}
	if err := repos.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedPlan(t *testing.T, repos *Repositories, userID uint, tasks ...model.TaskInstance) *model.PlanInstance {
	t.Helper()
	ctx := context.Background()
	plan := &model.PlanInstance{UserID: userID, IsActive: true, Title: "plan", StartDate: day(2025, 3, 1)}
	if err := repos.Instances.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	for i := range tasks {
		tasks[i].PlanInstanceID = plan.ID
		tasks[i].UserID = userID
		if tasks[i].Status == "" {
			tasks[i].Status = model.TaskStatusPending
		}
	}
	if err := repos.Instances.CreateTasks(ctx, tasks); err != nil {
		t.Fatalf("create tasks: %v", err)
	}
	return plan
}

func TestListExpiredUsesLatestTaskDate(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	alice := seedUser(t, repos, "alice")
	bob := seedUser(t, repos, "bob")

	finished := seedPlan(t, repos, alice.ID,
		model.TaskInstance{Title: "a", Date: day(2025, 3, 1)},
		model.TaskInstance{Title: "b", Date: day(2025, 3, 2)},
	)
	running := seedPlan(t, repos, bob.ID,
		model.TaskInstance{Title: "a", Date: day(2025, 3, 1)},
		model.TaskInstance{Title: "b", Date: day(2025, 3, 3)},
	)

	expired, err := repos.Instances.ListExpired(ctx, day(2025, 3, 3))
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != finished.ID {
		t.Fatalf("expected only plan %d expired, got %+v", finished.ID, expired)
	}

	if _, err := repos.Instances.DeactivateIfActive(ctx, finished.ID, time.Now()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	expired, err = repos.Instances.ListExpired(ctx, day(2025, 3, 4))
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != running.ID {
		t.Fatalf("expected only plan %d expired, got %+v", running.ID, expired)
	}
}

func TestHoldActivePlanStopsAfterClose(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")
	plan := seedPlan(t, repos, user.ID, model.TaskInstance{Title: "a", Date: day(2025, 3, 1)})

	held, err := repos.Instances.HoldActivePlan(ctx, plan.ID, time.Now())
	if err != nil || !held {
		t.Fatalf("hold running plan: held=%v err=%v", held, err)
	}
	if _, err := repos.Instances.DeactivateIfActive(ctx, plan.ID, time.Now()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	held, err = repos.Instances.HoldActivePlan(ctx, plan.ID, time.Now())
	if err != nil || held {
		t.Fatalf("hold closed plan: held=%v err=%v", held, err)
	}
}

func TestDeactivateIfActiveWinsOnce(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")
	plan := seedPlan(t, repos, user.ID, model.TaskInstance{Title: "a", Date: day(2025, 3, 1)})

	won, err := repos.Instances.DeactivateIfActive(ctx, plan.ID, time.Now())
	if err != nil || !won {
		t.Fatalf("first deactivate: won=%v err=%v", won, err)
	}
	won, err = repos.Instances.DeactivateIfActive(ctx, plan.ID, time.Now())
	if err != nil || won {
		t.Fatalf("second deactivate: won=%v err=%v", won, err)
	}
}

func TestMarkPenalizedFlagsOnlyEligibleTasks(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")
	plan := seedPlan(t, repos, user.ID,
		model.TaskInstance{Title: "missed", IsMandatory: true, Date: day(2025, 3, 1)},
		model.TaskInstance{Title: "done", IsMandatory: true, Date: day(2025, 3, 1), Status: model.TaskStatusDone},
		model.TaskInstance{Title: "optional", Date: day(2025, 3, 1)},
		model.TaskInstance{Title: "today", IsMandatory: true, Date: day(2025, 3, 3)},
		model.TaskInstance{Title: "flagged", IsMandatory: true, Date: day(2025, 3, 2), PenaltyApplied: true},
	)

	flagged, err := repos.Instances.MarkPenalized(ctx, plan.ID, day(2025, 3, 3))
	if err != nil {
		t.Fatalf("mark penalized: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected 1 flagged task, got %d", flagged)
	}

	again, err := repos.Instances.MarkPenalized(ctx, plan.ID, day(2025, 3, 3))
	if err != nil {
		t.Fatalf("mark penalized again: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no task flagged twice, got %d", again)
	}
}

func TestMarkDoneAndPendingAreConditional(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")
	plan := seedPlan(t, repos, user.ID,
		model.TaskInstance{Title: "a", Date: day(2025, 3, 1)},
		model.TaskInstance{Title: "penalized", Date: day(2025, 3, 1), PenaltyApplied: true},
	)
	tasks, err := repos.Instances.ListTasks(ctx, plan.ID)
	if err != nil || len(tasks) != 2 {
		t.Fatalf("list tasks: %v (%d)", err, len(tasks))
	}

	won, err := repos.Instances.MarkDone(ctx, tasks[0].ID, 20, time.Now())
	if err != nil || !won {
		t.Fatalf("mark done: won=%v err=%v", won, err)
	}
	won, err = repos.Instances.MarkDone(ctx, tasks[0].ID, 20, time.Now())
	if err != nil || won {
		t.Fatalf("repeat mark done: won=%v err=%v", won, err)
	}
	stored, err := repos.Instances.FindTask(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if stored.AwardedPoints != 20 || stored.LastActivityDate == nil {
		t.Fatalf("expected award and activity date recorded, got %+v", stored)
	}

	won, err = repos.Instances.MarkDone(ctx, tasks[1].ID, 10, time.Now())
	if err != nil || won {
		t.Fatalf("penalized task must not complete: won=%v err=%v", won, err)
	}

	won, err = repos.Instances.MarkPending(ctx, tasks[0].ID)
	if err != nil || !won {
		t.Fatalf("mark pending: won=%v err=%v", won, err)
	}
	won, err = repos.Instances.MarkPending(ctx, tasks[0].ID)
	if err != nil || won {
		t.Fatalf("repeat mark pending: won=%v err=%v", won, err)
	}
}

func TestOneActivePlanPerUser(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")
	seedPlan(t, repos, user.ID)

	second := &model.PlanInstance{UserID: user.ID, IsActive: true, Title: "second"}
	err := repos.Instances.CreatePlan(ctx, second)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key, got %v", err)
	}

	closed, err := repos.Instances.DeactivateActiveByUser(ctx, user.ID, time.Now())
	if err != nil || closed != 1 {
		t.Fatalf("deactivate: closed=%d err=%v", closed, err)
	}
	if err := repos.Instances.CreatePlan(ctx, &model.PlanInstance{UserID: user.ID, IsActive: true, Title: "third"}); err != nil {
		t.Fatalf("create after deactivate: %v", err)
	}
}

func TestAddPointsAppliesRelativeDelta(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")

	for _, delta := range []int{20, -15, 5} {
		if err := repos.Users.AddPoints(ctx, user.ID, delta); err != nil {
			t.Fatalf("add points: %v", err)
		}
	}
	stored, err := repos.Users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.Points != 10 {
		t.Fatalf("expected 10 points, got %d", stored.Points)
	}

	if err := repos.Users.AddPoints(ctx, 9999, 1); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := seedUser(t, repos, "alice")

	boom := errors.New("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if err := tx.Users.AddPoints(ctx, user.ID, 50); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	stored, err := repos.Users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.Points != 0 {
		t.Fatalf("expected rollback to keep 0 points, got %d", stored.Points)
	}
}

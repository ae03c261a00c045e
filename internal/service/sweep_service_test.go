package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

type recordingNotifier struct {
	mu        sync.Mutex
	penalties []Penalty
}

func (n *recordingNotifier) NotifyPenalty(_ context.Context, p Penalty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.penalties = append(n.penalties, p)
}

func startTwoDayPlan(t *testing.T, repos *repository.Repositories, userID uint, start time.Time) *model.PlanInstance {
	t.Helper()
	template := createTwoDayTemplate(t, repos, userID)
	plan, err := NewPlanService(repos, nil, (&fixedClock{now: start}).Now, time.UTC).StartPlan(context.Background(), userID, template.ID)
	if err != nil {
		t.Fatalf("start plan: %v", err)
	}
	return plan
}

func TestSweepPenalizesMissedMandatoryTasksOnce(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := createUser(t, repos, "alice")
	plan := startTwoDayPlan(t, repos, user.ID, at(2025, 3, 10, 9))

	notifier := &recordingNotifier{}
	sweep := NewSweepService(repos, nil, (&fixedClock{now: at(2025, 3, 12, 0)}).Now, time.UTC)
	sweep.SetNotifier(notifier)

	report, err := sweep.Run(ctx, at(2025, 3, 12, 0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Expired != 1 || report.Deactivated != 1 || report.Penalized != 1 || report.PointsDebited != 15 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := points(t, repos, user.ID); got != -15 {
		t.Fatalf("expected -15 points, got %d", got)
	}

	stored, err := repos.Instances.FindPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("find plan: %v", err)
	}
	if stored.IsActive {
		t.Fatal("expected plan deactivated")
	}
	tasks := tasksOf(t, repos, plan.ID)
	if !tasks[0].PenaltyApplied {
		t.Fatal("expected mandatory task flagged")
	}
	if tasks[1].PenaltyApplied {
		t.Fatal("optional task must not be penalized")
	}

	report, err = sweep.Run(ctx, at(2025, 3, 12, 0))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Expired != 0 || report.PointsDebited != 0 {
		t.Fatalf("second sweep must be a no-op, got %+v", report)
	}
	if got := points(t, repos, user.ID); got != -15 {
		t.Fatalf("expected balance unchanged at -15, got %d", got)
	}

	if len(notifier.penalties) != 1 || notifier.penalties[0].Points != 15 || notifier.penalties[0].PlanID != plan.ID {
		t.Fatalf("unexpected notifications: %+v", notifier.penalties)
	}
}

func TestSweepKeepsPlansWithTasksDueToday(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := createUser(t, repos, "alice")
	plan := startTwoDayPlan(t, repos, user.ID, at(2025, 3, 10, 9))

	sweep := NewSweepService(repos, nil, nil, time.UTC)
	report, err := sweep.Run(ctx, at(2025, 3, 11, 23))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Expired != 0 {
		t.Fatalf("plan with a task due today must not expire: %+v", report)
	}
	stored, err := repos.Instances.FindPlan(ctx, plan.ID)
	if err != nil || !stored.IsActive {
		t.Fatalf("expected plan still active: %+v %v", stored, err)
	}
}

func TestSweepDeactivatesCompletedPlanWithoutPenalty(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := createUser(t, repos, "alice")
	plan := startTwoDayPlan(t, repos, user.ID, at(2025, 3, 10, 9))
	scoring := NewScoringService(repos, nil)
	for _, task := range tasksOf(t, repos, plan.ID) {
		if _, err := scoring.SetTaskStatus(ctx, task.ID, model.TaskStatusDone, SetStatusOptions{}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	report, err := NewSweepService(repos, nil, nil, time.UTC).Run(ctx, at(2025, 3, 20, 0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Deactivated != 1 || report.Penalized != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := points(t, repos, user.ID); got != 30 {
		t.Fatalf("expected earned 30 points untouched, got %d", got)
	}
}

func TestSweepSkipsAlreadyPenalizedTasks(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	user := createUser(t, repos, "alice")
	plan := startTwoDayPlan(t, repos, user.ID, at(2025, 3, 10, 9))
	if err := repos.DB().Model(&model.TaskInstance{}).Where("plan_instance_id = ?", plan.ID).
		Update("penalty_applied", true).Error; err != nil {
		t.Fatalf("flag tasks: %v", err)
	}

	report, err := NewSweepService(repos, nil, nil, time.UTC).Run(ctx, at(2025, 3, 12, 0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Deactivated != 1 || report.PointsDebited != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := points(t, repos, user.ID); got != 0 {
		t.Fatalf("expected no debit, got %d", got)
	}
}

func TestSweepIsolatesFailingPlans(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	alice := createUser(t, repos, "alice")
	ghost := createUser(t, repos, "ghost")
	broken := startTwoDayPlan(t, repos, ghost.ID, at(2025, 3, 10, 9))
	healthy := startTwoDayPlan(t, repos, alice.ID, at(2025, 3, 10, 9))

	if err := repos.DB().Delete(&model.User{}, ghost.ID).Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}

	report, err := NewSweepService(repos, nil, nil, time.UTC).Run(ctx, at(2025, 3, 12, 0))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Expired != 2 || report.Failed != 1 || report.Deactivated != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	stored, err := repos.Instances.FindPlan(ctx, broken.ID)
	if err != nil {
		t.Fatalf("find broken plan: %v", err)
	}
	if !stored.IsActive {
		t.Fatal("failed plan must roll back and stay active for the next sweep")
	}
	if tasksOf(t, repos, broken.ID)[0].PenaltyApplied {
		t.Fatal("failed plan must not keep penalty flags")
	}
	stored, err = repos.Instances.FindPlan(ctx, healthy.ID)
	if err != nil || stored.IsActive {
		t.Fatalf("healthy plan must be closed: %+v %v", stored, err)
	}
	if got := points(t, repos, alice.ID); got != -15 {
		t.Fatalf("expected -15 for alice, got %d", got)
	}
}

type heldLocker struct{}

func (heldLocker) TryLock(context.Context) (func(), bool, error) { return nil, false, nil }

func TestSweepRefusesOverlappingRuns(t *testing.T) {
	repos := openTestRepos(t)
	_, err := NewSweepService(repos, heldLocker{}, nil, time.UTC).Run(context.Background(), time.Now())
	if !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected ErrSweepInProgress, got %v", err)
	}
}

func TestLocalLocker(t *testing.T) {
	var locker LocalLocker
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx); ok {
		t.Fatal("second lock must fail while held")
	}
	release()
	release, ok, err = locker.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("lock after release: ok=%v err=%v", ok, err)
	}
	release()
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	key := "plantracker:test:" + t.Name()
	a := NewRedisLocker(client, key, time.Minute)
	b := NewRedisLocker(client, key, time.Minute)

	release, ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.TryLock(ctx); err != nil || ok {
		t.Fatalf("second lock must fail: ok=%v err=%v", ok, err)
	}
	release()
	release, ok, err = b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("lock after release: ok=%v err=%v", ok, err)
	}
	release()
}

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

// fixedClock returns a settable clock for tests.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) set(t time.Time) { c.now = t }

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func openTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "plantracker-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewRepositories(db)
}

func createUser(t *testing.T, repos *repository.Repositories, name string) *model.User {
	t.Helper()
	user := &model.User{Username: name}
	if err := repos.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// createTwoDayTemplate stores a template with a mandatory day-1 task and an
// optional day-2 task.
func createTwoDayTemplate(t *testing.T, repos *repository.Repositories, ownerID uint) *model.TemplatePlan {
	t.Helper()
	plan := &model.TemplatePlan{
		OwnerID:  ownerID,
		Title:    "Two days",
		Category: "sport",
		IsPublic: true,
		Version:  1,
		Tasks: []model.TemplateTask{
			{DayNumber: 1, TaskOrder: 1, Title: "Morning run", IsMandatory: true},
			{DayNumber: 2, TaskOrder: 1, Title: "Stretching"},
		},
	}
	if err := repos.Templates.Create(context.Background(), plan); err != nil {
		t.Fatalf("create template: %v", err)
	}
	return plan
}

func points(t *testing.T, repos *repository.Repositories, userID uint) int {
	t.Helper()
	user, err := repos.Users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	return user.Points
}

func tasksOf(t *testing.T, repos *repository.Repositories, planID uint) []model.TaskInstance {
	t.Helper()
	tasks, err := repos.Instances.ListTasks(context.Background(), planID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return tasks
}

func activePlans(t *testing.T, repos *repository.Repositories, userID uint) []model.PlanInstance {
	t.Helper()
	var plans []model.PlanInstance
	if err := repos.DB().Where("user_id = ? AND is_active = ?", userID, true).Find(&plans).Error; err != nil {
		t.Fatalf("list active plans: %v", err)
	}
	return plans
}

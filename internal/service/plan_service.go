package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

// TaskInput describes a user-authored task added to a running plan.
type TaskInput struct {
	Title           string          `yaml:"title" json:"title"`
	Description     string          `yaml:"description" json:"description"`
	DayNumber       int             `yaml:"day" json:"dayNumber"`
	TaskOrder       int             `yaml:"order" json:"taskOrder"`
	DurationMinutes int             `yaml:"duration" json:"durationMinutes"`
	IsMandatory     bool            `yaml:"mandatory" json:"isMandatory"`
	IsRepeating     bool            `yaml:"repeating" json:"isRepeating"`
	Category        string          `yaml:"category" json:"category"`
	StartTime       string          `yaml:"start" json:"startTime"`
	EndTime         string          `yaml:"end" json:"endTime"`
	ImageURL        string          `yaml:"image" json:"imageUrl"`
	Nutrition       model.Nutrition `yaml:"nutrition" json:"nutrition"`
}

// PlanService clones templates into running plan instances.
type PlanService struct {
	repos     *repository.Repositories
	nutrition NutritionClassifier
	now       Clock
	loc       *time.Location
}

func NewPlanService(repos *repository.Repositories, nutrition NutritionClassifier, now Clock, loc *time.Location) *PlanService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &PlanService{repos: repos, nutrition: nutrition, now: now, loc: loc}
}

// StartPlan materializes the template as the user's only active plan. The new
// instance and all its tasks are written in one transaction together with the
// deactivation of the user's previous running plans.
func (s *PlanService) StartPlan(ctx context.Context, userID, templateID uint) (*model.PlanInstance, error) {
	template, err := s.repos.Templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("template %d", templateID), ErrCloneFailed)
	}
	if _, err := s.repos.Users.FindByID(ctx, userID); err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", userID), ErrCloneFailed)
	}

	now := s.now()
	start := DayStart(now, s.loc)
	var instance *model.PlanInstance

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		closed, err := tx.Instances.DeactivateActiveByUser(ctx, userID, now)
		if err != nil {
			return err
		}

		templateRef := template.ID
		instance = &model.PlanInstance{
			UserID:         userID,
			TemplatePlanID: &templateRef,
			IsActive:       true,
			Title:          template.Title,
			Description:    template.Description,
			Details:        template.Details,
			Category:       template.Category,
			Version:        template.Version,
			StartDate:      start,
		}
		if err := tx.Instances.CreatePlan(ctx, instance); err != nil {
			return err
		}

		templateTasks, err := tx.Templates.ListTasks(ctx, template.ID)
		if err != nil {
			return err
		}
		tasks := make([]model.TaskInstance, 0, len(templateTasks))
		for _, tt := range templateTasks {
			tasks = append(tasks, cloneTask(tt, instance.ID, userID, start))
		}
		if err := tx.Instances.CreateTasks(ctx, tasks); err != nil {
			return err
		}

		count, err := tx.Instances.CountTasks(ctx, instance.ID)
		if err != nil {
			return err
		}
		if count != int64(len(templateTasks)) {
			return fmt.Errorf("cloned %d of %d tasks", count, len(templateTasks))
		}
		instance.Tasks = tasks

		logger.Info("plan started", "user", userID, "template", template.ID, "instance", instance.ID,
			"tasks", len(tasks), "closed", closed)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: user %d already started another plan", ErrConflict, userID)
		}
		return nil, fmt.Errorf("%w: template %d: %v", ErrCloneFailed, templateID, err)
	}
	return instance, nil
}

func cloneTask(tt model.TemplateTask, planID, userID uint, start time.Time) model.TaskInstance {
	return model.TaskInstance{
		PlanInstanceID:  planID,
		UserID:          userID,
		Title:           tt.Title,
		Description:     tt.Description,
		TaskOrder:       tt.TaskOrder,
		DurationMinutes: tt.DurationMinutes,
		IsMandatory:     tt.IsMandatory,
		IsRepeating:     tt.IsRepeating,
		Category:        tt.Category,
		StartTime:       tt.StartTime,
		EndTime:         tt.EndTime,
		ImageURL:        tt.ImageURL,
		Date:            TaskDate(start, tt.DayNumber),
		Status:          model.TaskStatusPending,
		PenaltyApplied:  false,
		Nutrition:       tt.Nutrition,
	}
}

// ActivePlan returns the user's running instance with all of its tasks.
func (s *PlanService) ActivePlan(ctx context.Context, userID uint) (*model.PlanInstance, error) {
	plan, err := s.repos.Instances.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("active plan of user %d", userID), err)
	}
	tasks, err := s.repos.Instances.ListTasks(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Tasks = tasks
	return plan, nil
}

// AddTask appends a user-authored task to one of the user's own running plans.
// Missing nutrition fields are filled from the description when the classifier
// answers in time.
func (s *PlanService) AddTask(ctx context.Context, userID, planID uint, input TaskInput) (*model.TaskInstance, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.DayNumber < 1 {
		return nil, fmt.Errorf("%w: day must be at least 1", ErrInvalidInput)
	}

	plan, err := s.repos.Instances.FindPlan(ctx, planID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("plan %d", planID), err)
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan %d belongs to another user", ErrForbidden, planID)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %d is finished", ErrConflict, planID)
	}

	nutrition := input.Nutrition
	if nutrition.IsEmpty() {
		nutrition = enrich(ctx, s.nutrition, input.Description)
	}

	task := model.TaskInstance{
		PlanInstanceID:  plan.ID,
		UserID:          userID,
		Title:           input.Title,
		Description:     input.Description,
		TaskOrder:       input.TaskOrder,
		DurationMinutes: input.DurationMinutes,
		IsMandatory:     input.IsMandatory,
		IsRepeating:     input.IsRepeating,
		Category:        input.Category,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		ImageURL:        input.ImageURL,
		Date:            TaskDate(plan.StartDate, input.DayNumber),
		Status:          model.TaskStatusPending,
		Nutrition:       nutrition,
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		held, err := tx.Instances.HoldActivePlan(ctx, plan.ID, s.now())
		if err != nil {
			return err
		}
		if !held {
			return fmt.Errorf("%w: plan %d is finished", ErrConflict, planID)
		}
		return tx.Instances.CreateTask(ctx, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

// TemplateInput is an authored plan together with its tasks.
type TemplateInput struct {
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description" json:"description"`
	Details     string      `yaml:"details" json:"details"`
	Category    string      `yaml:"category" json:"category"`
	Private     bool        `yaml:"private" json:"private"`
	Tasks       []TaskInput `yaml:"tasks" json:"tasks"`
}

// templateFile is the on-disk layout read by ImportYAML.
type templateFile struct {
	Owner     string          `yaml:"owner"`
	Templates []TemplateInput `yaml:"templates"`
}

// TemplateService authors and lists shared template plans.
type TemplateService struct {
	repos     *repository.Repositories
	nutrition NutritionClassifier
}

func NewTemplateService(repos *repository.Repositories, nutrition NutritionClassifier) *TemplateService {
	return &TemplateService{repos: repos, nutrition: nutrition}
}

// TemplateQuery narrows List. A zero OwnerID lists every author.
type TemplateQuery struct {
	Category string
	OwnerID  uint
	SortBy   string
}

func (s *TemplateService) List(ctx context.Context, query TemplateQuery) ([]model.TemplatePlan, error) {
	return s.repos.Templates.ListPublic(ctx, repository.TemplateFilter{
		Category: strings.TrimSpace(query.Category),
		OwnerID:  query.OwnerID,
		SortBy:   query.SortBy,
	})
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*model.TemplatePlan, error) {
	plan, err := s.repos.Templates.FindWithTasks(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("template %d", id), err)
	}
	return plan, nil
}

// OwnedBy lists the templates the user authored, most liked first.
func (s *TemplateService) OwnedBy(ctx context.Context, userID uint) ([]model.TemplatePlan, error) {
	return s.repos.Templates.ListByOwner(ctx, userID)
}

// Create validates the input and stores the template with all its tasks.
func (s *TemplateService) Create(ctx context.Context, ownerID uint, input TemplateInput) (*model.TemplatePlan, error) {
	plan, err := s.build(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Templates.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ImportYAML reads a templates file and stores every template in one
// transaction, owned by the user named in the file (or ownerID if set).
func (s *TemplateService) ImportYAML(ctx context.Context, r io.Reader, ownerID uint) ([]model.TemplatePlan, error) {
	var file templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: parse templates: %v", ErrInvalidInput, err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("%w: no templates in file", ErrInvalidInput)
	}

	plans := make([]*model.TemplatePlan, 0, len(file.Templates))
	for i, input := range file.Templates {
		plan, err := s.build(ctx, ownerID, input)
		if err != nil {
			return nil, fmt.Errorf("template #%d: %w", i+1, err)
		}
		plans = append(plans, plan)
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if ownerID == 0 && file.Owner != "" {
			owner := &model.User{Username: file.Owner}
			if err := tx.Users.Create(ctx, owner); err != nil {
				return err
			}
			for _, plan := range plans {
				plan.OwnerID = owner.ID
			}
		}
		for _, plan := range plans {
			if err := tx.Templates.Create(ctx, plan); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.TemplatePlan, 0, len(plans))
	for _, plan := range plans {
		out = append(out, *plan)
	}
	return out, nil
}

func (s *TemplateService) build(ctx context.Context, ownerID uint, input TemplateInput) (*model.TemplatePlan, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(input.Tasks) == 0 {
		return nil, fmt.Errorf("%w: template %q has no tasks", ErrInvalidInput, title)
	}

	plan := &model.TemplatePlan{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Details:     strings.TrimSpace(input.Details),
		Category:    strings.TrimSpace(input.Category),
		IsPublic:    !input.Private,
		Version:     1,
		Tasks:       make([]model.TemplateTask, 0, len(input.Tasks)),
	}
	for i, t := range input.Tasks {
		task, err := s.buildTask(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("task #%d: %w", i+1, err)
		}
		plan.Tasks = append(plan.Tasks, task)
	}
	return plan, nil
}

func (s *TemplateService) buildTask(ctx context.Context, t TaskInput) (model.TemplateTask, error) {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return model.TemplateTask{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if t.DayNumber < 1 {
		return model.TemplateTask{}, fmt.Errorf("%w: day number must be at least 1", ErrInvalidInput)
	}
	if t.DurationMinutes < 0 {
		return model.TemplateTask{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}

	nutrition := t.Nutrition
	if nutrition.IsEmpty() {
		nutrition = enrich(ctx, s.nutrition, t.Description)
	}
	return model.TemplateTask{
		DayNumber:       t.DayNumber,
		TaskOrder:       t.TaskOrder,
		Title:           title,
		Description:     strings.TrimSpace(t.Description),
		DurationMinutes: t.DurationMinutes,
		IsMandatory:     t.IsMandatory,
		IsRepeating:     t.IsRepeating,
		Category:        strings.TrimSpace(t.Category),
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		ImageURL:        t.ImageURL,
		Nutrition:       nutrition,
	}, nil
}

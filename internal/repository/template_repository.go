package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"plan-tracker/internal/model"
)

// TemplateFilter narrows ListPublic.
type TemplateFilter struct {
	Category string
	OwnerID  uint
	// SortBy is "likes" or "created"; anything else sorts by id.
	SortBy string
}

// TemplateRepository reads and authors template plans.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts the plan together with its Tasks.
func (r *TemplateRepository) Create(ctx context.Context, plan *model.TemplatePlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id uint) (*model.TemplatePlan, error) {
	var plan model.TemplatePlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindWithTasks loads the plan and its tasks in clone order.
func (r *TemplateRepository) FindWithTasks(ctx context.Context, id uint) (*model.TemplatePlan, error) {
	var plan model.TemplatePlan
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_number ASC, task_order ASC, id ASC")
		}).
		First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListTasks returns the template's tasks ordered by day, then task order.
func (r *TemplateRepository) ListTasks(ctx context.Context, templateID uint) ([]model.TemplateTask, error) {
	var tasks []model.TemplateTask
	if err := r.db.WithContext(ctx).
		Where("template_plan_id = ?", templateID).
		Order("day_number ASC, task_order ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list template tasks: %w", err)
	}
	return tasks, nil
}

func (r *TemplateRepository) ListPublic(ctx context.Context, filter TemplateFilter) ([]model.TemplatePlan, error) {
	query := r.db.WithContext(ctx).Where("is_public = ?", true)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	switch filter.SortBy {
	case "likes":
		query = query.Order("likes_count DESC, id ASC")
	case "created":
		query = query.Order("created_at DESC, id DESC")
	default:
		query = query.Order("id ASC")
	}

	var plans []model.TemplatePlan
	if err := query.Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// ListByOwner returns every template the user authored, most liked first.
func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.TemplatePlan, error) {
	var plans []model.TemplatePlan
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("likes_count DESC, id ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *TemplateRepository) IncrementLikes(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&model.TemplatePlan{}).
		Where("id = ?", id).
		UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment likes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("increment likes: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plan-tracker/internal/model"
)

// InstanceRepository stores running plan instances and their dated tasks.
// The conditional updates below are the only writers of status, penalty and
// activity flags; each reports whether it won the transition.
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func (r *InstanceRepository) CreatePlan(ctx context.Context, plan *model.PlanInstance) error {
	if err := r.db.WithContext(ctx).Omit("Tasks").Create(plan).Error; err != nil {
		return fmt.Errorf("create plan instance: %w", err)
	}
	return nil
}

func (r *InstanceRepository) CreateTasks(ctx context.Context, tasks []model.TaskInstance) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&tasks, 100).Error; err != nil {
		return fmt.Errorf("create task instances: %w", err)
	}
	return nil
}

func (r *InstanceRepository) CreateTask(ctx context.Context, task *model.TaskInstance) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task instance: %w", err)
	}
	return nil
}

func (r *InstanceRepository) FindPlan(ctx context.Context, id uint) (*model.PlanInstance, error) {
	var plan model.PlanInstance
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindActiveByUser returns gorm.ErrRecordNotFound when the user runs no plan.
func (r *InstanceRepository) FindActiveByUser(ctx context.Context, userID uint) (*model.PlanInstance, error) {
	var plan model.PlanInstance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id DESC").
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// HoldActivePlan touches a running instance so that writers to its tasks and
// the sweep serialize on the plan row. It returns false once the instance is
// inactive.
func (r *InstanceRepository) HoldActivePlan(ctx context.Context, planID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PlanInstance{}).
		Where("id = ? AND is_active = ?", planID, true).
		Update("updated_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("hold plan: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *InstanceRepository) FindTask(ctx context.Context, id uint) (*model.TaskInstance, error) {
	var task model.TaskInstance
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *InstanceRepository) ListTasks(ctx context.Context, planID uint) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Where("plan_instance_id = ?", planID).
		Order("date ASC, task_order ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *InstanceRepository) ListTasksForDay(ctx context.Context, planID uint, day time.Time) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Where("plan_instance_id = ? AND date = ?", planID, day).
		Order("task_order ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *InstanceRepository) CountTasks(ctx context.Context, planID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("plan_instance_id = ?", planID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeactivateActiveByUser closes every running instance owned by userID.
func (r *InstanceRepository) DeactivateActiveByUser(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PlanInstance{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{"is_active": false, "completed_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate user plans: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeactivateIfActive flips one instance to inactive. It returns false when the
// instance was already inactive.
func (r *InstanceRepository) DeactivateIfActive(ctx context.Context, planID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PlanInstance{}).
		Where("id = ? AND is_active = ?", planID, true).
		Updates(map[string]interface{}{"is_active": false, "completed_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("deactivate plan: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListExpired returns active instances whose latest task date is before day.
func (r *InstanceRepository) ListExpired(ctx context.Context, day time.Time) ([]model.PlanInstance, error) {
	db := r.db.WithContext(ctx)
	latest := db.Model(&model.TaskInstance{}).
		Select("plan_instance_id").
		Group("plan_instance_id").
		Having("MAX(date) < ?", day)

	var plans []model.PlanInstance
	if err := db.Where("is_active = ? AND id IN (?)", true, latest).
		Order("id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list expired plans: %w", err)
	}
	return plans, nil
}

// MarkPenalized flags the incomplete mandatory tasks dated before day that
// were not penalized yet, and returns how many it flagged.
func (r *InstanceRepository) MarkPenalized(ctx context.Context, planID uint, day time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("plan_instance_id = ? AND status <> ? AND is_mandatory = ? AND date < ? AND penalty_applied = ?",
			planID, model.TaskStatusDone, true, day, false).
		Update("penalty_applied", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark penalties: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkDone moves a pending, unpenalized task to done and records the award.
func (r *InstanceRepository) MarkDone(ctx context.Context, taskID uint, award int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("id = ? AND status = ? AND penalty_applied = ?", taskID, model.TaskStatusPending, false).
		Updates(map[string]interface{}{
			"status":             model.TaskStatusDone,
			"awarded_points":     award,
			"last_activity_date": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkPending moves a done task back to pending and clears the stored award.
func (r *InstanceRepository) MarkPending(ctx context.Context, taskID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("id = ? AND status = ?", taskID, model.TaskStatusDone).
		Updates(map[string]interface{}{
			"status":         model.TaskStatusPending,
			"awarded_points": 0,
		})
	if res.Error != nil {
		return false, fmt.Errorf("revert task: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

package model

import "time"

// TaskStatus is the completion state of a TaskInstance.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusDone
}

// PlanInstance is a user's running copy of a plan. At most one instance per
// user is active; the partial unique index backs the check done at start time.
type PlanInstance struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index;not null;uniqueIndex:idx_plan_instances_one_active,where:is_active = true" json:"userId"`
	TemplatePlanID *uint      `gorm:"index" json:"templatePlanId,omitempty"`
	IsActive       bool       `gorm:"index;not null;default:false" json:"isActive"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Details        string     `json:"details,omitempty"`
	Category       string     `json:"category,omitempty"`
	Version        int        `json:"version"`
	StartDate      time.Time  `json:"startDate"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Tasks []TaskInstance `gorm:"foreignKey:PlanInstanceID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// TaskInstance is a dated copy of a TemplateTask inside a PlanInstance.
// Date is the calendar day stored as UTC midnight.
type TaskInstance struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	PlanInstanceID   uint       `gorm:"index;not null" json:"planInstanceId"`
	UserID           uint       `gorm:"index;not null" json:"userId"`
	Title            string     `gorm:"not null" json:"title"`
	Description      string     `json:"description,omitempty"`
	TaskOrder        int        `json:"taskOrder"`
	DurationMinutes  int        `json:"durationMinutes,omitempty"`
	IsMandatory      bool       `gorm:"default:false" json:"isMandatory"`
	IsRepeating      bool       `gorm:"default:false" json:"isRepeating"`
	Category         string     `json:"category,omitempty"`
	StartTime        string     `json:"startTime,omitempty"`
	EndTime          string     `json:"endTime,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	Date             time.Time  `gorm:"index;not null" json:"date"`
	Status           TaskStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	PenaltyApplied   bool       `gorm:"not null;default:false" json:"penaltyApplied"`
	AwardedPoints    int        `gorm:"not null;default:0" json:"awardedPoints"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	Nutrition
	CreatedAt time.Time
	UpdatedAt time.Time
}

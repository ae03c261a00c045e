package model

import "time"

// TemplatePlan is an authored, shareable multi-day plan. Only LikesCount changes
// after creation.
type TemplatePlan struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OwnerID     uint   `gorm:"index" json:"ownerId"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	Category    string `gorm:"index" json:"category,omitempty"`
	IsPublic    bool   `gorm:"default:true" json:"isPublic"`
	Version     int    `gorm:"default:1" json:"version"`
	LikesCount  int    `gorm:"not null;default:0" json:"likesCount"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Tasks []TemplateTask `gorm:"foreignKey:TemplatePlanID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// TemplateTask is one step of a TemplatePlan. DayNumber is 1-based.
type TemplateTask struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	TemplatePlanID  uint   `gorm:"index;not null" json:"templatePlanId"`
	DayNumber       int    `gorm:"not null" json:"dayNumber"`
	TaskOrder       int    `json:"taskOrder"`
	Title           string `gorm:"not null" json:"title"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	IsMandatory     bool   `gorm:"default:false" json:"isMandatory"`
	IsRepeating     bool   `gorm:"default:false" json:"isRepeating"`
	Category        string `json:"category,omitempty"`
	StartTime       string `json:"startTime,omitempty"` // HH:MM
	EndTime         string `json:"endTime,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	Nutrition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Nutrition holds the optional macro fields of meal-like tasks.
type Nutrition struct {
	Calories *int     `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fats     *float64 `json:"fats,omitempty"`
}

// IsEmpty reports whether no macro field is set.
func (n Nutrition) IsEmpty() bool {
	return n.Calories == nil && n.Protein == nil && n.Carbs == nil && n.Fats == nil
}

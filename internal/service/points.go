package service

import "plan-tracker/internal/model"

const (
	basePoints     = 10
	mandatoryBonus = 10
	repeatingBonus = 5
	PenaltyPerTask = 15
)

// AwardFor returns the points credited when a task moves from pending to done.
func AwardFor(task model.TaskInstance) int {
	points := basePoints
	if task.IsMandatory {
		points += mandatoryBonus
	}
	if task.IsRepeating {
		points += repeatingBonus
	}
	return points
}

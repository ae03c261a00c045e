package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrCloneFailed     = errors.New("clone failed")
	ErrScoringFailed   = errors.New("scoring failed")
	ErrSweepItemFailed = errors.New("sweep item failed")
	ErrSweepInProgress = errors.New("sweep already in progress")
)

// notFound maps gorm's missing-row error onto ErrNotFound and wraps anything
// else with fallback.
func notFound(err error, what string, fallback error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", fallback, what, err)
}

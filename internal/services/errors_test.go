package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorKinds(t *testing.T) {
	err := invalid("goals.create", "title", "must be at least %d characters", 3)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "goals.create: title: must be at least 3 characters", err.Error())

	var se *Error
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "title", se.Field)
}

func TestStoreError(t *testing.T) {
	err := storeError("goals.get", "goal", gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "goals.get: goal not found", err.Error())

	base := errors.New("connection reset by peer")
	err = storeError("goals.get", "goal", base)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, base)

	// already classified errors pass through untouched
	original := forbidden("admin.stats", "admin privileges required")
	assert.Same(t, original, storeError("admin.stats", "stats", original))
}

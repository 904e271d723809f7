package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesCode(t *testing.T) {
	detailed := NewDomainError(ErrInvalidState.Code, "entry is sent, only dead entries can be retried")
	wrapped := fmt.Errorf("retry: %w", detailed)

	assert.True(t, errors.Is(wrapped, ErrInvalidState))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "entry is sent, only dead entries can be retried", errors.Unwrap(wrapped).Error())
}

func TestBaseEntity_Touch(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewBaseEntityAt(created)
	assert.Equal(t, created, e.GetCreatedAt())
	assert.Equal(t, created, e.GetUpdatedAt())

	e.Touch(created.Add(time.Hour))
	assert.Equal(t, created, e.GetCreatedAt())
	assert.Equal(t, created.Add(time.Hour), e.GetUpdatedAt())
}

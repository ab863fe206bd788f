package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-portal/internal/domain"
)

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(domain.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be a valid email", ve.Fields["email"])
	assert.Equal(t, "is required", ve.Fields["password"])
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(domain.LoginRequest{Email: "a@my.xu.edu.ph", Password: "secret"}))
}

func TestStruct_NotificationCategory(t *testing.T) {
	err := Struct(domain.CreateNotificationRequest{
		Title:      "t",
		Message:    "m",
		Category:   "gossip",
		Recipients: []string{"everyone"},
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "category")
	assert.NotContains(t, ve.Fields, "recipients")
}

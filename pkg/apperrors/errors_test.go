package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid parameter", InvalidParameter("title is required"), KindInvalidParameter},
		{"unrecognized guid", UnrecognizedGUID("guid", "abc", "GovernanceZone"), KindUnrecognizedGUID},
		{"wrapped typed error", fmt.Errorf("outer: %w", UserNotAuthorized("no user")), KindUserNotAuthorized},
		{"plain error", errors.New("boom"), KindPropertyServer},
		{"sentinel", ErrNotFound, KindPropertyServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestClassify_ReclassifiesUnknownFaults(t *testing.T) {
	assert.Nil(t, Classify(nil))

	cause := errors.New("connection reset")
	classified := Classify(cause)
	require.NotNil(t, classified)
	assert.Equal(t, KindPropertyServer, classified.Kind)
	assert.ErrorIs(t, classified, cause)
	assert.NotEmpty(t, classified.SystemAction)
	assert.NotEmpty(t, classified.UserAction)

	typed := InvalidParameter("bad")
	assert.Same(t, typed, Classify(fmt.Errorf("wrap: %w", typed)))
}

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("ctx: %w", UnrecognizedGUID("zoneGUID", "x", ""))
	assert.ErrorIs(t, err, UnrecognizedGUIDError)
	assert.NotErrorIs(t, err, InvalidParameterError)
}

func TestKind_Code(t *testing.T) {
	assert.Equal(t, "invalid_parameter", KindInvalidParameter.Code())
	assert.Equal(t, "unrecognized_guid", KindUnrecognizedGUID.Code())
	assert.Equal(t, "user_not_authorized", KindUserNotAuthorized.Code())
	assert.Equal(t, "property_server_error", KindPropertyServer.Code())
}

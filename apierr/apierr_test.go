package apierr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-arena-client/apierr"
)

func TestError_UnwrapsToKind(t *testing.T) {
	err := apierr.New(apierr.ErrBanned, 403, "BANNED")
	err.Reason = "cheating"

	require.ErrorIs(t, err, apierr.ErrBanned)
	require.NotErrorIs(t, err, apierr.ErrServerError)
	require.Equal(t, 403, apierr.StatusOf(err))
	require.Equal(t, "cheating", apierr.ReasonOf(err))
}

func TestError_SurvivesWrapping(t *testing.T) {
	inner := apierr.New(apierr.ErrValidationFailed, 422, "validation failed")
	inner.Details = map[string][]string{"email": {"is taken"}}
	wrapped := fmt.Errorf("register: %w", inner)

	require.ErrorIs(t, wrapped, apierr.ErrValidationFailed)
	require.Equal(t, 422, apierr.StatusOf(wrapped))
	require.Equal(t, []string{"is taken"}, apierr.DetailsOf(wrapped)["email"])
}

func TestHelpers_ZeroValuesForForeignErrors(t *testing.T) {
	err := errors.New("plain")
	require.Equal(t, 0, apierr.StatusOf(err))
	require.Empty(t, apierr.ReasonOf(err))
	require.Nil(t, apierr.DetailsOf(err))
}

func TestWrapf(t *testing.T) {
	require.NoError(t, apierr.Wrapf(nil, "context"))

	err := apierr.Wrapf(apierr.ErrNotFound, "tournament %s", "t-1")
	require.ErrorIs(t, err, apierr.ErrNotFound)
	require.Contains(t, err.Error(), "tournament t-1")
}

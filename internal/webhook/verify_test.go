package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

func TestVerify(t *testing.T) {
	const secret = "StravaWebhookRideout"

	got, err := Verify(secret, "subscribe", secret, "xyz")
	require.NoError(t, err)
	body, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"hub.challenge":"xyz"}`, string(body))

	_, err = Verify(secret, "subscribe", "wrong", "xyz")
	require.ErrorIs(t, err, domain.ErrInvalidVerification)

	_, err = Verify(secret, "unsubscribe", secret, "xyz")
	require.ErrorIs(t, err, domain.ErrInvalidVerification)

	_, err = Verify("", "subscribe", "", "xyz")
	require.ErrorIs(t, err, domain.ErrInvalidVerification)
}

package webhook

import (
	"crypto/subtle"

	"example.com/stravasync/internal/domain"
)

// ModeSubscribe is the only hub.mode accepted during the subscription handshake.
const ModeSubscribe = "subscribe"

// Challenge is echoed back to the provider when a subscription handshake succeeds.
type Challenge struct {
	Challenge string `json:"hub.challenge"`
}

// Verify checks the handshake parameters against the configured verify token.
func Verify(verifyToken, mode, token, challenge string) (Challenge, error) {
	if mode != ModeSubscribe || verifyToken == "" {
		return Challenge{}, domain.ErrInvalidVerification
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
		return Challenge{}, domain.ErrInvalidVerification
	}
	return Challenge{Challenge: challenge}, nil
}

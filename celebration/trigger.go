package celebration

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidTriggerToken rejects a webhook whose signed token does not
// verify or does not carry a usable trigger event.
var ErrInvalidTriggerToken = errors.New("celebration: invalid trigger token")

// TriggerEvent is the payload of a verified external trigger webhook, e.g.
// from a challenger monitor or a bill-status feed.
type TriggerEvent struct {
	CelebrationID string
	Trigger       Trigger
	Reason        string
}

// TriggerVerifier authenticates trigger webhooks. External monitors sign
// their events as HS256 tokens with a shared secret; nothing is read from
// the database until the token verifies.
type TriggerVerifier struct {
	secret []byte
}

// NewTriggerVerifier creates a verifier for the shared webhook secret.
func NewTriggerVerifier(secret string) *TriggerVerifier {
	return &TriggerVerifier{secret: []byte(secret)}
}

// Verify parses and validates a trigger token, returning the event it
// carries.
func (v *TriggerVerifier) Verify(tokenString string) (TriggerEvent, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return TriggerEvent{}, fmt.Errorf("%w: %v", ErrInvalidTriggerToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return TriggerEvent{}, ErrInvalidTriggerToken
	}

	celebrationID, ok := claims["celebration_id"].(string)
	if !ok || celebrationID == "" {
		return TriggerEvent{}, fmt.Errorf("%w: missing celebration_id", ErrInvalidTriggerToken)
	}
	triggerStr, ok := claims["trigger"].(string)
	if !ok {
		return TriggerEvent{}, fmt.Errorf("%w: missing trigger", ErrInvalidTriggerToken)
	}
	trigger := Trigger(triggerStr)
	switch trigger {
	case TriggerChallengerLost, TriggerChallengerReappeared, TriggerBillResolved, TriggerSessionEnded:
	default:
		return TriggerEvent{}, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTriggerToken, triggerStr)
	}

	reason, _ := claims["reason"].(string)
	return TriggerEvent{
		CelebrationID: celebrationID,
		Trigger:       trigger,
		Reason:        reason,
	}, nil
}

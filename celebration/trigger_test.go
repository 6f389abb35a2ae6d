package celebration

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "trigger-secret"

func signTrigger(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestTriggerVerifier_ValidToken(t *testing.T) {
	v := NewTriggerVerifier(testSecret)
	token := signTrigger(t, testSecret, jwt.MapClaims{
		"celebration_id": "c1",
		"trigger":        string(TriggerChallengerReappeared),
		"reason":         "qualifying challenger filed",
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	event, err := v.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if event.CelebrationID != "c1" {
		t.Errorf("expected celebration c1, got %s", event.CelebrationID)
	}
	if event.Trigger != TriggerChallengerReappeared {
		t.Errorf("expected challenger_reappeared, got %s", event.Trigger)
	}
	if event.Reason != "qualifying challenger filed" {
		t.Errorf("unexpected reason %q", event.Reason)
	}
}

func TestTriggerVerifier_RejectsBadTokens(t *testing.T) {
	v := NewTriggerVerifier(testSecret)

	cases := []struct {
		name  string
		token string
	}{
		{"wrong secret", signTrigger(t, "other-secret", jwt.MapClaims{
			"celebration_id": "c1",
			"trigger":        string(TriggerSessionEnded),
		})},
		{"expired", signTrigger(t, testSecret, jwt.MapClaims{
			"celebration_id": "c1",
			"trigger":        string(TriggerSessionEnded),
			"exp":            time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing celebration id", signTrigger(t, testSecret, jwt.MapClaims{
			"trigger": string(TriggerSessionEnded),
		})},
		{"unknown trigger", signTrigger(t, testSecret, jwt.MapClaims{
			"celebration_id": "c1",
			"trigger":        "meteor_strike",
		})},
		{"garbage", "not-a-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); !errors.Is(err, ErrInvalidTriggerToken) {
				t.Fatalf("expected ErrInvalidTriggerToken, got %v", err)
			}
		})
	}
}

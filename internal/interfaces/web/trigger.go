package web

import (
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
)

const (
	// TriggerHeader is set by Cloud Scheduler on every request it sends.
	TriggerHeader = "X-Cloudscheduler"
	triggerName   = "cron-trigger"
	triggerValue  = "check-bookings"
)

// TriggerTokens mints and checks the HMAC-signed value expected in
// TriggerHeader when a trigger key is configured.
type TriggerTokens struct{ sc *securecookie.SecureCookie }

func NewTriggerTokens(hashKey []byte) (*TriggerTokens, error) {
	if len(hashKey) < 32 {
		return nil, errors.New("trigger key must be at least 32 bytes")
	}
	// tokens live in scheduler config, so they never expire
	sc := securecookie.New(hashKey, nil).MaxAge(0)
	return &TriggerTokens{sc: sc}, nil
}

func (t *TriggerTokens) Mint() (string, error) {
	return t.sc.Encode(triggerName, triggerValue)
}

func (t *TriggerTokens) Valid(token string) bool {
	var v string
	if err := t.sc.Decode(triggerName, token, &v); err != nil {
		return false
	}
	return v == triggerValue
}

// requireTrigger guards the cron endpoint. Outside production the header is
// not checked at all; in production it must be present, and must carry a
// valid token when tokens is non-nil.
func requireTrigger(production bool, tokens *TriggerTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if production {
				v := r.Header.Get(TriggerHeader)
				if v == "" || (tokens != nil && !tokens.Valid(v)) {
					writeJSON(w, http.StatusForbidden, triggerResponse{Success: false, Error: "Forbidden"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

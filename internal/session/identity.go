package session

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the best-effort viewer identity recovered from the backend
// token. The gateway never validates the token — the backend is the only
// authority — it just needs the ids for realtime announcements and chat
// history filtering.
type Identity struct {
	UserID string
	Name   string
}

// FromToken decodes the token's claims without verifying the signature.
func FromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, err
	}

	var id Identity
	if sub, err := claims.GetSubject(); err == nil {
		id.UserID = sub
	}
	if id.UserID == "" {
		switch v := claims["id"].(type) {
		case string:
			id.UserID = v
		case float64:
			id.UserID = strconv.FormatInt(int64(v), 10)
		}
	}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if id.UserID == "" {
		return Identity{}, errors.New("session: token carries no subject")
	}
	return id, nil
}

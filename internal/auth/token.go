package auth // package auth covers token handling and permission decisions

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/secure-file-vault/internal/model"
)

// Identity is what a verified bearer token proves about the caller. It is
// reconstructed per request; the server keeps no session state.
type Identity struct {
	UserID uint64
	Email  string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == model.RoleAdmin }

// ErrInvalidToken covers every way a bearer token can fail verification:
// bad signature, wrong algorithm, expiry, malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// NewToken builds and signs an HS256 JWT for a user. The claims carry the
// user id, email and role plus the standard exp/iat pair; ttl is one hour
// in the default configuration.
func NewToken(secret string, u model.User, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"userId": u.ID,
		"email":  u.Email,
		"role":   u.Role,
		"exp":    exp.Unix(),
		"iat":    time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken verifies signature and expiry and extracts the caller identity.
// Anything short of a fully valid token yields ErrInvalidToken.
func ParseToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	var id Identity
	// Numeric JSON claims decode as float64.
	uid, ok := claims["userId"].(float64)
	if !ok || uid <= 0 {
		return Identity{}, ErrInvalidToken
	}
	id.UserID = uint64(uid)
	id.Email, _ = claims["email"].(string)
	id.Role, ok = claims["role"].(string)
	if !ok || id.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

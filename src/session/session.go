// Package session derives the tenant identity a notification channel is
// opened for.
package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be decoded or verified.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultClaimKeys are the claims searched, in order, for the tenant id.
var DefaultClaimKeys = []string{"establishment_id", "etablissement_id", "tenant_id"}

// Identity names the tenant (establishment) a session belongs to.
type Identity struct {
	ID string
}

// Valid reports whether a connection target can be derived.
func (i Identity) Valid() bool { return i.ID != "" }

func (i Identity) String() string { return i.ID }

// FromValue normalises a string or numeric claim. Anything else yields an
// invalid identity.
func FromValue(v any) Identity {
	switch id := v.(type) {
	case string:
		return Identity{ID: strings.TrimSpace(id)}
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return Identity{}
		}
		if id == math.Trunc(id) {
			return Identity{ID: strconv.FormatInt(int64(id), 10)}
		}
		return Identity{ID: strconv.FormatFloat(id, 'f', -1, 64)}
	case int:
		return Identity{ID: strconv.Itoa(id)}
	case int64:
		return Identity{ID: strconv.FormatInt(id, 10)}
	case uint64:
		return Identity{ID: strconv.FormatUint(id, 10)}
	default:
		return Identity{}
	}
}

// FromClaims looks up the first present key in claims, then in a nested
// "user" object.
func FromClaims(claims jwt.MapClaims, keys ...string) Identity {
	if len(keys) == 0 {
		keys = DefaultClaimKeys
	}
	if id := lookup(claims, keys); id.Valid() {
		return id
	}
	if user, ok := claims["user"].(map[string]any); ok {
		return lookup(user, keys)
	}
	return Identity{}
}

func lookup(m map[string]any, keys []string) Identity {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if id := FromValue(v); id.Valid() {
				return id
			}
		}
	}
	return Identity{}
}

// FromToken decodes token without verifying its signature and extracts the
// tenant id. A token without a usable claim returns an invalid identity and
// no error.
func FromToken(token string, keys ...string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return FromClaims(claims, keys...), nil
}

// Verifier checks HS256 tokens presented to the relay.
type Verifier struct {
	secret []byte
	keys   []string
}

// NewVerifier returns a verifier for secret. keys override DefaultClaimKeys.
func NewVerifier(secret string, keys ...string) *Verifier {
	return &Verifier{secret: []byte(secret), keys: keys}
}

// Verify validates token and returns the tenant it grants access to.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := FromClaims(claims, v.keys...)
	if !id.Valid() {
		return Identity{}, fmt.Errorf("%w: no tenant claim", ErrInvalidToken)
	}
	return id, nil
}

// Sign issues an HS256 token carrying tenant under the first claim key.
// Used by tooling and tests.
func (v *Verifier) Sign(tenant string, extra jwt.MapClaims) (string, error) {
	keys := v.keys
	if len(keys) == 0 {
		keys = DefaultClaimKeys
	}
	claims := jwt.MapClaims{keys[0]: tenant}
	for k, val := range extra {
		claims[k] = val
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

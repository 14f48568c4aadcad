// Package auth decodes the authenticated session of the requesting player.
// Sessions are HS256 JWTs issued by the app backend. The claims carry enough
// of the profile to act as a fallback when the local profile cache is empty.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/timeutil"
)

var (
	ErrInvalidToken     = errors.New("invalid session token")
	ErrExpiredToken     = errors.New("session token expired")
	ErrInvalidSignature = errors.New("invalid session token signature")
)

// SessionClaims are the claims of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username       string `json:"username,omitempty"`
	Name           string `json:"name,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Position       string `json:"position,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Location       string `json:"location,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Level          string `json:"level,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	BirthDate      string `json:"birthDate,omitempty"`
}

// SessionVerifier validates session tokens and turns them into profiles.
type SessionVerifier struct {
	secret []byte
	issuer string
	clock  timeutil.Clock
}

// NewSessionVerifier creates a verifier for tokens signed with secret.
// An empty issuer accepts any issuer.
func NewSessionVerifier(secret, issuer string, clock timeutil.Clock) *SessionVerifier {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &SessionVerifier{secret: []byte(secret), issuer: issuer, clock: clock}
}

var _ player.IdentityProvider = (*SessionVerifier)(nil)

// Verify parses and validates a token.
func (v *SessionVerifier) Verify(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identity returns the profile carried by the session. A profile without a
// valid position is returned as is; the matching run rejects it later.
func (v *SessionVerifier) Identity(_ context.Context, cred player.Credential) (*player.Player, error) {
	if cred.IsEmpty() {
		return nil, shared.ErrUnauthorized
	}
	claims, err := v.Verify(string(cred))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthorized, err)
	}
	return v.profile(claims), nil
}

func (v *SessionVerifier) profile(c *SessionClaims) *player.Player {
	first, last := strings.TrimSpace(c.FirstName), strings.TrimSpace(c.LastName)
	if first == "" && last == "" {
		first, last = player.SplitName(c.Name)
	}
	if first == "" && last == "" {
		first = strings.TrimSpace(c.Username)
	}

	pos, _ := player.ParsePosition(c.Position)

	level := strings.TrimSpace(c.Level)
	if level == "" {
		level = player.DefaultLevel
	}

	age := player.DefaultAge
	if year, ok := timeutil.ParseBirthYear(c.BirthDate); ok {
		age = player.AgeFromBirthYear(v.clock().Year(), year)
	}

	return &player.Player{
		ID:              c.Subject,
		FirstName:       first,
		LastName:        last,
		Username:        strings.TrimSpace(c.Username),
		Position:        pos,
		Phone:           strings.TrimSpace(c.Phone),
		Email:           strings.TrimSpace(c.Email),
		Location:        strings.TrimSpace(c.Location),
		Bio:             strings.TrimSpace(c.Bio),
		ExperienceLevel: level,
		Age:             age,
		ProfileImage:    c.ProfilePicture,
		Stats:           player.DefaultStats(),
	}
}

// Issue signs a session token for p. Used by the operator CLI and tests.
func (v *SessionVerifier) Issue(p player.Player, ttl time.Duration) (string, error) {
	now := v.clock()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:       p.Username,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Position:       p.Position.String(),
		Phone:          p.Phone,
		Email:          p.Email,
		Location:       p.Location,
		Bio:            p.Bio,
		Level:          p.ExperienceLevel,
		ProfilePicture: p.ProfileImage,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

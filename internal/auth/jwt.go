package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformedToken means the token is not structurally a valid JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature means the signature does not match the payload.
	ErrBadSignature = errors.New("bad token signature")
	// ErrExpired means the token's expiry has passed.
	ErrExpired = errors.New("token expired")
)

// Claims holds JWT claims including user ID and roles. The subject is the
// user's email.
type Claims struct {
	UserID int64    `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256-signed bearer tokens. Verification
// depends only on the token, the secret and the clock, so concurrent use
// needs no locking.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService creates a JWT service. expireHours <= 0 falls back to 24h.
func NewJWTService(secret string, expireHours int) *JWTService {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    time.Duration(expireHours) * time.Hour,
		now:    time.Now,
	}
}

// Issue creates a signed token binding subject (email), user id and roles to
// an expiry of now + TTL.
func (s *JWTService) Issue(subject string, userID int64, roles []string) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	if len(roles) == 0 {
		return "", errors.New("empty role list")
	}
	now := s.now()
	claims := Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token. A token is valid strictly while
// now < expiry; at now == expiry it is already expired.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrBadSignature):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformedToken
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

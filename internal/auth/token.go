package auth

import (
	"errors"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "go-pos"

// OperatorClaims are the JWT claims of an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// Authority issues and validates HMAC signed operator tokens.
type Authority struct {
	secret []byte
	now    func() time.Time
}

func NewAuthority(secret []byte, now func() time.Time) *Authority {
	if now == nil {
		now = time.Now
	}
	return &Authority{secret: secret, now: now}
}

func (a *Authority) Issue(operatorID, name string, role Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", errors.New("unknown role " + string(role))
	}
	now := a.now().UTC()
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Capabilities validates token and derives what its operator may do.
func (a *Authority) Capabilities(token string) (*Capabilities, error) {
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, domain.NewInvalidToken(err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, domain.NewInvalidToken(errors.New("token has no operator or an unknown role"))
	}
	return NewCapabilities(claims.Subject, claims.Name, claims.Role, claims.ExpiresAt.Time.UTC()), nil
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ms-pos/internal/models"
)

// Claims carries the actor identity in "sub" and its role in "role".
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header.
// Browsers cannot set headers on an EventSource, so ?access_token= is accepted as well.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ParseActor verifies an HS256 token and returns the actor it names.
func ParseActor(tokenString string, secret []byte) (models.Actor, error) {
	if tokenString == "" {
		return models.Actor{}, errors.New("empty token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.Subject == "" {
		return models.Actor{}, errors.New("subject claim not found in token")
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return models.Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return models.Actor{ID: claims.Subject, Role: role}, nil
}

// IssueToken signs a token for actor valid for ttl.
func IssueToken(actor models.Actor, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

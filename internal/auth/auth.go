package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var gConfig *Config

func Init(cfg *Config) {
	gConfig = cfg
}

type claims struct {
	jwt.RegisteredClaims
}

// VerifyToken извлекает идентификатор пользователя из заголовка Authorization.
// Возвращает subject токена — стабильный идентификатор, под которым
// пользователь держит аренды и авторствует версии.
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("no authorization header")
	}
	authToken = strings.TrimPrefix(authToken, "Bearer ")

	var parsed claims
	_, err := jwt.ParseWithClaims(authToken, &parsed, func(token *jwt.Token) (interface{}, error) {
		return []byte(gConfig.Secret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if gConfig.Issuer != "" && parsed.Issuer != gConfig.Issuer {
		return "", fmt.Errorf("unexpected token issuer")
	}
	if parsed.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return parsed.Subject, nil
}

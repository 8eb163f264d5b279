package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

const defaultTokenMinuteLifespan = 30

type JwtCustomClaim struct {
	TenantCode string `json:"comp_cd,omitempty"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("Closing-Secret")
	}
	return []byte(secret)
}

// TokenLifespan is read from TOKEN_MINUTE_LIFESPAN (minutes, default 30).
func TokenLifespan() time.Duration {
	minutes := defaultTokenMinuteLifespan
	if v := strings.TrimSpace(os.Getenv("TOKEN_MINUTE_LIFESPAN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}
	return time.Duration(minutes) * time.Minute
}

// JwtGenerate signs an HS256 token for username. It returns the token and its id (jti).
func JwtGenerate(username string, tenantCode string) (string, string, error) {
	now := time.Now()
	tokenId := uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		TenantCode: tenantCode,
		StandardClaims: jwt.StandardClaims{
			Id:        tokenId,
			Subject:   username,
			ExpiresAt: now.Add(TokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", "", err
	}
	return token, tokenId, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}

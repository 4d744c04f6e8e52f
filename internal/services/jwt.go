package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trdelnik-backend/internal/config"
)

type JWTService struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	Player string `json:"player"`
	jwt.RegisteredClaims
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.JWTSecret),
		ttl:    24 * time.Hour,
	}
}

func (s *JWTService) GenerateToken(player string) (string, error) {
	claims := &Claims{
		Player: player,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Player == "" {
		return nil, fmt.Errorf("token missing player address")
	}

	return claims, nil
}

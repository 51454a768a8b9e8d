package utils

import (
	"errors"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
)

// Claims represents the JWT claims. The token carries only the signed,
// server-verifiable identity; handlers read the authenticated user id from
// the request context, never from client-supplied fields.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Phone  string          `json:"phone"`
	Role   models.UserRole `json:"role"`
	jwt.StandardClaims
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	TokenType    string `json:"token_type"`
}

// getJWTSecret returns the JWT secret from environment variable or a default for development
func getJWTSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Default secret for development only
		return "truckmitra-dev-secret"
	}
	return secret
}

// GenerateTokenPair creates access and refresh tokens
func GenerateTokenPair(userID uuid.UUID, phone string, role models.UserRole) (TokenPair, error) {
	accessExpiration := time.Now().Add(15 * time.Minute)
	refreshExpiration := time.Now().Add(7 * 24 * time.Hour)

	accessClaims := Claims{
		UserID: userID,
		Phone:  phone,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: accessExpiration.Unix(),
		},
	}

	refreshClaims := Claims{
		UserID: userID,
		Phone:  phone,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: refreshExpiration.Unix(),
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)

	jwtSecret := getJWTSecret()
	accessTokenString, err := accessToken.SignedString([]byte(jwtSecret))
	if err != nil {
		return TokenPair{}, err
	}

	refreshTokenString, err := refreshToken.SignedString([]byte(jwtSecret))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    accessExpiration.Unix() - time.Now().Unix(),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	jwtSecret := getJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("failed to parse token claims")
	}

	return claims, nil
}

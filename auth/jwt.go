package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("token invalid")
	ErrWrongTokenType = errors.New("wrong token type")
)

var secret []byte

// SetSecret sets the HMAC key used to sign and verify tokens.
func SetSecret(s string) {
	secret = []byte(s)
}

type Claims struct {
	UserID       uint64 `json:"user_id"`
	TokenVersion uint64 `json:"token_version"`
	Type         string `json:"typ"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(userID, tokenVersion uint64) (string, error) {
	return generate(userID, tokenVersion, typeAccess, AccessTokenTTL)
}

func GenerateRefreshToken(userID, tokenVersion uint64) (string, error) {
	return generate(userID, tokenVersion, typeRefresh, RefreshTokenTTL)
}

func generate(userID, tokenVersion uint64, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:       userID,
		TokenVersion: tokenVersion,
		Type:         typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func VerifyJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessToken rejects refresh tokens presented as access tokens.
func VerifyAccessToken(tokenString string) (*Claims, error) {
	return verifyType(tokenString, typeAccess)
}

func VerifyRefreshToken(tokenString string) (*Claims, error) {
	return verifyType(tokenString, typeRefresh)
}

func verifyType(tokenString, typ string) (*Claims, error) {
	claims, err := VerifyJWT(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

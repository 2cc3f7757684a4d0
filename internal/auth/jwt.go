package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session tokens are signed with HS256. The key comes from the environment;
// the fallback only exists so local development works out of the box.
func jwtSecretKey() []byte {
	if key := os.Getenv("JWT_SECRET"); key != "" {
		return []byte(key)
	}
	return []byte("LOCAL_DEV_SECRET_DO_NOT_DEPLOY")
}

// Identity is what a validated session token resolves to.
type Identity struct {
	UserID    int64
	Anonymous bool
}

// GenerateToken creates a new JWT for a given user.
// Anonymous sessions carry an "anon" claim so the middleware can tell
// a bootstrapped visitor apart from a registered account.
func GenerateToken(userID int64, anonymous bool) (string, error) {
	// 1. Claims. Anonymous sessions live longer than registered ones
	// because the visitor has no way to log back in.
	expiry := time.Hour * 72
	if anonymous {
		expiry = time.Hour * 24 * 30
	}

	claims := jwt.MapClaims{
		"sub":  userID,
		"anon": anonymous,
		"exp":  time.Now().Add(expiry).Unix(),
		"iat":  time.Now().Unix(),
	}

	// 2. Sign with HS256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(jwtSecretKey())
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token string.
// It returns the resolved identity if the token is valid.
func ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than our HMAC family.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecretKey(), nil
	})
	if err != nil {
		return Identity{}, err // expired, malformed, bad signature
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	// "sub" arrives as float64 (JSON's number type).
	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return Identity{}, errors.New("invalid subject claim")
	}

	anon, _ := claims["anon"].(bool)

	return Identity{UserID: int64(userIDFloat), Anonymous: anon}, nil
}

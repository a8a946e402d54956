package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the claims in a voicewire bearer token.
type Claims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Secret returns the HMAC signing key. VOICEWIRE_JWT_SECRET overrides the
// development default.
func Secret() []byte {
	if s := os.Getenv("VOICEWIRE_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("voicewire-dev-secret")
}

// GenerateDeviceToken generates a bearer token for device authentication.
// The token is what the streaming client embeds in the connect URL.
func GenerateDeviceToken(deviceID string) (string, error) {
	claims := &Claims{
		DeviceID: deviceID,
		Role:     "device",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(Secret())
}

// ValidateToken validates a bearer token and returns its claims.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return Secret(), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims of an access token. sub is the numeric id of the user or of the
// restaurant, depending on is_restaurant.
type Claims struct {
	Subject      Subject `json:"sub"`
	IsRestaurant bool    `json:"is_restaurant"`
	jwt.RegisteredClaims
}

// Subject accepts both a JSON number and a numeric string.
type Subject int64

func (s *Subject) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)

	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("sub must be a numeric id: %w", err)
	}

	*s = Subject(id)
	return nil
}

func (s Subject) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(s))
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

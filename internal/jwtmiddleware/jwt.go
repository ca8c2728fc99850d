package jwtmiddleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Claims extracts the user id and role from the accessToken cookie.
// Issuing and refreshing tokens belongs to the auth collaborator; this
// package only consumes them.
func Claims(c echo.Context, jwtSecret []byte) (uint, string, error) {
	cookie, err := c.Cookie("accessToken")
	if err != nil || cookie.Value == "" {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	role, _ := claims["role"].(string)

	return uint(subRaw), role, nil
}

func GetID(c echo.Context, jwtSecret []byte) (uint, error) {
	id, _, err := Claims(c, jwtSecret)
	return id, err
}

// OptionalID returns the user id if the request carries a valid token
// and nil otherwise. Anonymous browsing is allowed; the id only feeds
// activity events.
func OptionalID(c echo.Context, jwtSecret []byte) *uint {
	id, _, err := Claims(c, jwtSecret)
	if err != nil {
		return nil
	}
	return &id
}

func RequireAdmin(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, role, err := Claims(c, jwtSecret)
			if err != nil {
				return err
			}
			if role != "admin" {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			return next(c)
		}
	}
}

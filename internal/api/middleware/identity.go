package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDHeader is set by the gateway once the caller is authenticated.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// Claims carries the caller's user id in the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// RequireUser rejects requests without a caller identity and stores the
// identity on the context for handlers. With an empty secret the identity is
// read from UserIDHeader; otherwise only an HMAC-signed bearer token whose
// subject is the user id is accepted.
func RequireUser(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var userID string
			if secret == "" {
				userID = strings.TrimSpace(c.Request().Header.Get(UserIDHeader))
				if userID == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing "+UserIDHeader+" header")
				}
			} else {
				sub, err := subjectFromBearer(c.Request().Header.Get(echo.HeaderAuthorization), secret)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
				}
				userID = sub
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

func subjectFromBearer(header, secret string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header format")
	}

	token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// UserID returns the identity stored by RequireUser, or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

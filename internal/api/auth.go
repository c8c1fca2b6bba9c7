package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const operatorContextKey = "Operator"

// OperatorClaims represents JWT claims for the authenticated operator.
type OperatorClaims struct {
	Operator bool `json:"op"`
	jwt.RegisteredClaims
}

func checkPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(secret string, expiresAt time.Time) (string, error) {
	claims := OperatorClaims{
		Operator: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid && claims.Operator {
		return nil
	}
	return errors.New("invalid token claims")
}

// AuthMiddleware enforces JWT auth for protected routes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "MISSING_TOKEN",
				"error": "missing Authorization header",
			})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "INVALID_AUTH_HEADER",
				"error": "invalid Authorization header",
			})
			return
		}

		if err := parseToken(parts[1], secret); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "INVALID_TOKEN",
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(operatorContextKey, true)
		c.Next()
	}
}

// loginOperator issues a token when the operator password matches.
func (s *Server) loginOperator(auth OperatorAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.PasswordHash == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"code":  "LOGIN_DISABLED",
				"error": "operator login is not configured",
			})
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_PAYLOAD",
				"error": "password is required",
			})
			return
		}

		if err := checkPassword(auth.PasswordHash, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":  "INVALID_CREDENTIALS",
				"error": "invalid credentials",
			})
			return
		}

		expiresAt := time.Now().Add(24 * time.Hour)
		token, err := generateToken(s.JWTSecret, expiresAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "INTERNAL_ERROR",
				"error": "failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		})
	}
}

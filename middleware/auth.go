package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/iPranay05/Skill-Prob-sub002/services"
)

const IdentityContextKey = "identity"

// GatewaySecretHeader carries the secret shared with the API gateway.
const GatewaySecretHeader = "X-Gateway-Secret"

// AuthMiddleware reads identity headers injected by the API gateway, falling
// back to gateway cookies and then to a bearer token signed with jwtSecret.
func AuthMiddleware(jwtSecret []byte) gin.HandlerFunc {
	return GatewayAuthMiddleware(jwtSecret, "")
}

// GatewayAuthMiddleware is AuthMiddleware that, when gatewaySecret is set,
// trusts identity headers and cookies only on requests carrying it. Cookies
// never carry a role; a cookie-only caller is a student.
func GatewayAuthMiddleware(jwtSecret []byte, gatewaySecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role, email string

		if fromGateway(c, gatewaySecret) {
			userID = c.GetHeader("X-User-ID")
			role = c.GetHeader("X-User-Role")
			email = c.GetHeader("X-User-Email")

			if userID == "" {
				if v, err := c.Cookie("user_id"); err == nil && v != "" {
					userID = v
					role = ""
				}
			}
			if email == "" {
				if v, err := c.Cookie("user_email"); err == nil && v != "" {
					email = v
				}
			}
		}

		if userID == "" {
			if token := bearerToken(c); token != "" && jwtSecret != nil {
				claims, err := parseToken(token, jwtSecret)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
					return
				}
				userID, _ = claims["user_id"].(string)
				role, _ = claims["role"].(string)
				email, _ = claims["email"].(string)
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		id, err := uuid.Parse(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id"})
			return
		}
		parsedRole, ok := models.ParseRole(role)
		if !ok {
			parsedRole = models.RoleStudent
		}

		c.Set(IdentityContextKey, models.Identity{UserID: id, Role: parsedRole, Email: email})
		c.Next()
	}
}

func fromGateway(c *gin.Context, secret string) bool {
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(c.GetHeader(GatewaySecretHeader)), []byte(secret)) == 1
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func parseToken(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if typ, ok := claims["typ"].(string); ok && typ != "access" {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}

// GetIdentity extracts the caller from the Gin context.
func GetIdentity(c *gin.Context) (models.Identity, error) {
	if val, ok := c.Get(IdentityContextKey); ok {
		if id, ok := val.(models.Identity); ok && id.UserID != uuid.Nil {
			return id, nil
		}
	}
	return models.Identity{}, errors.New("identity not found in context")
}

// RequireCapability restricts a route group to roles holding cap.
func RequireCapability(cap services.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := GetIdentity(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !services.HasCapability(id.Role, cap) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

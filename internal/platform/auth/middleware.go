package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}

// RequireAuth: Authorization: Bearer <token> を検証して context に user_id(int64)/role を詰める。
// トークンの発行は外部の認証基盤が行う。
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "empty token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid claims")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing sub")
			return
		}
		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil || userID <= 0 {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "sub must be a positive user id")
			return
		}

		role, _ := claims["role"].(string)

		c.Set(CtxUserIDKey, userID)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := Role(c)
		if !ok {
			abort(c, http.StatusForbidden, "FORBIDDEN", "missing role")
			return
		}
		if _, allowed := roleSet[role]; !allowed {
			abort(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
			return
		}
		c.Next()
	}
}

// UserID は RequireAuth が詰めた利用者IDを返す
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func Role(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok && role != ""
}

// Package auth 提供 JWT 鉴权
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/paiban/banbiao/internal/tenant"
	"github.com/paiban/banbiao/pkg/logger"
)

// Claims JWT 载荷
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator Bearer JWT 鉴权器
type Authenticator struct {
	secret []byte
}

// New 创建鉴权器
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken 签发令牌（测试与开发工具用）
func (a *Authenticator) IssueToken(id *tenant.Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		TenantID: id.TenantID,
		Role:     string(id.Role),
		Email:    id.Email,
		Location: id.Location,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken 解析并校验令牌
func (a *Authenticator) ParseToken(raw string) (*tenant.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("令牌无效")
	}

	id := &tenant.Identity{
		TenantID: claims.TenantID,
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     tenant.Role(claims.Role),
		Location: claims.Location,
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

// Middleware 鉴权中间件
// 密钥为空时进入开发模式，从请求头直接读取身份。
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id *tenant.Identity

		if len(a.secret) == 0 {
			id = identityFromHeaders(r)
		} else {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "缺少认证令牌")
				return
			}
			parsed, err := a.ParseToken(raw)
			if err != nil {
				logger.Warn().Err(err).Msg("令牌校验失败")
				unauthorized(w, "认证令牌无效")
				return
			}
			id = parsed
		}

		if id == nil || id.Validate() != nil {
			unauthorized(w, "身份信息不完整")
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithIdentity(r.Context(), id)))
	})
}

// bearerToken 提取 Bearer 令牌
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// identityFromHeaders 开发模式下从请求头读取身份
func identityFromHeaders(r *http.Request) *tenant.Identity {
	role := r.Header.Get("X-Role")
	if role == "" {
		role = string(tenant.RoleEmployee)
	}
	return &tenant.Identity{
		TenantID: r.Header.Get("X-Tenant-ID"),
		UserID:   r.Header.Get("X-User-ID"),
		Email:    r.Header.Get("X-User-Email"),
		Role:     tenant.Role(role),
		Location: r.Header.Get("X-Location"),
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"code":"UNAUTHORIZED","message":%q}`, msg)
}

// Package tenant 提供多租户身份与授权支持
package tenant

import (
	"context"
	"errors"
)

var (
	ErrMissingTenant = errors.New("缺少租户")
	ErrMissingRole   = errors.New("缺少角色")
)

// Role 用户角色
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleOwner    Role = "owner"
)

// Valid 校验角色取值
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleOwner:
		return true
	}
	return false
}

// CanModerate 是否具备审批权限
func (r Role) CanModerate() bool {
	return r == RoleManager || r == RoleOwner
}

// Identity 认证层解析出的调用方身份
// 核心层的所有授权判定只依赖这里的字段。
type Identity struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	Location string `json:"location,omitempty"`
}

// Validate 校验身份完整性
func (id *Identity) Validate() error {
	if id.TenantID == "" {
		return ErrMissingTenant
	}
	if !id.Role.Valid() {
		return ErrMissingRole
	}
	return nil
}

// identityContextKey 身份上下文键
type identityContextKey struct{}

// WithIdentity 将身份添加到上下文
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext 从上下文获取身份
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok
}

// MustFromContext 从上下文获取身份，缺失时返回错误
func MustFromContext(ctx context.Context) (*Identity, error) {
	id, ok := FromContext(ctx)
	if !ok || id == nil {
		return nil, ErrMissingTenant
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

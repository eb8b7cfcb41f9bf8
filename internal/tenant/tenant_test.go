package tenant

import (
	"context"
	"testing"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		valid bool
	}{
		{"员工", RoleEmployee, true},
		{"管理员", RoleManager, true},
		{"店主", RoleOwner, true},
		{"空角色", Role(""), false},
		{"未知角色", Role("admin"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.valid {
				t.Errorf("Role(%q).Valid() = %v, expected %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestRole_CanModerate(t *testing.T) {
	if RoleEmployee.CanModerate() {
		t.Error("员工不应有审批权限")
	}
	if !RoleManager.CanModerate() {
		t.Error("管理员应有审批权限")
	}
	if !RoleOwner.CanModerate() {
		t.Error("店主应有审批权限")
	}
}

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr error
	}{
		{"完整身份", Identity{TenantID: "t1", UserID: "u1", Role: RoleEmployee}, nil},
		{"缺租户", Identity{UserID: "u1", Role: RoleEmployee}, ErrMissingTenant},
		{"缺角色", Identity{TenantID: "t1", UserID: "u1"}, ErrMissingRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.id.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, expected %v", err, tt.wantErr)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	id := &Identity{TenantID: "t1", UserID: "u1", Role: RoleManager}
	ctx := WithIdentity(context.Background(), id)

	got, ok := FromContext(ctx)
	if !ok || got.TenantID != "t1" {
		t.Fatalf("FromContext 应返回写入的身份: %+v", got)
	}

	must, err := MustFromContext(ctx)
	if err != nil || must.UserID != "u1" {
		t.Fatalf("MustFromContext 失败: %v", err)
	}
}

func TestMustFromContext_Missing(t *testing.T) {
	if _, err := MustFromContext(context.Background()); err != ErrMissingTenant {
		t.Errorf("空上下文应返回 ErrMissingTenant, 实际 %v", err)
	}

	ctx := WithIdentity(context.Background(), &Identity{TenantID: "t1"})
	if _, err := MustFromContext(ctx); err != ErrMissingRole {
		t.Errorf("缺角色应返回 ErrMissingRole, 实际 %v", err)
	}
}

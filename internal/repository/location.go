package repository

import (
	"context"

	"github.com/paiban/banbiao/internal/database"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// LocationRepositoryInterface 地点仓储接口
type LocationRepositoryInterface interface {
	Ensure(ctx context.Context, tenant, name string) error
	List(ctx context.Context, tenant string) ([]*Location, error)
}

// LocationRepository 地点仓储
type LocationRepository struct {
	db DB
}

// NewLocationRepository 创建地点仓储
func NewLocationRepository(db DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Ensure 确保地点存在，已存在时为空操作
// 空地点名是合法的默认地点，不入库。
func (r *LocationRepository) Ensure(ctx context.Context, tenant, name string) error {
	if name == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (tenant, name) VALUES ($1, $2)
		 ON CONFLICT (tenant, name) DO NOTHING`, tenant, name)
	if err != nil && !database.IsUniqueViolation(err) {
		return apperrors.Database("创建地点", err)
	}
	return nil
}

// List 列出租户的全部地点
func (r *LocationRepository) List(ctx context.Context, tenant string) ([]*Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant, name, created_at FROM locations
		 WHERE tenant = $1 ORDER BY name`, tenant)
	if err != nil {
		return nil, apperrors.Database("列出地点", err)
	}
	defer rows.Close()

	var out []*Location
	for rows.Next() {
		l := &Location{}
		if err := rows.Scan(&l.ID, &l.Tenant, &l.Name, &l.CreatedAt); err != nil {
			return nil, apperrors.Database("列出地点", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

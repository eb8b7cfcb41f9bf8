package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// DefaultDemandRepositoryInterface 默认模板仓储接口
type DefaultDemandRepositoryInterface interface {
	Upsert(ctx context.Context, d *DefaultDemand) error
	Lookup(ctx context.Context, tenant, location string, weekday int) (*DefaultDemand, error)
	Week(ctx context.Context, tenant, location string) (map[int]*DefaultDemand, error)
}

// DefaultDemandRepository 每周默认模板仓储
type DefaultDemandRepository struct {
	db DB
}

// NewDefaultDemandRepository 创建默认模板仓储
func NewDefaultDemandRepository(db DB) *DefaultDemandRepository {
	return &DefaultDemandRepository{db: db}
}

const defaultDemandColumns = `id, tenant, location, weekday, items, updated_at`

// Upsert 按 (tenant, location, weekday) 整体替换模板条目
func (r *DefaultDemandRepository) Upsert(ctx context.Context, d *DefaultDemand) error {
	if len(d.Items) == 0 {
		d.Items = json.RawMessage("[]")
	}
	query := `
		INSERT INTO default_demands (tenant, location, weekday, items)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant, location, weekday) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = now()
		RETURNING id, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		d.Tenant, d.Location, d.Weekday, d.Items,
	).Scan(&d.ID, &d.UpdatedAt)
	if err != nil {
		return apperrors.Database("保存默认模板", err)
	}
	return nil
}

// Lookup 查询某天适用的模板：先查精确星期，再回退
func (r *DefaultDemandRepository) Lookup(ctx context.Context, tenant, location string, weekday int) (*DefaultDemand, error) {
	d, err := r.get(ctx, tenant, location, weekday)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Database("查询默认模板", err)
	}
	d, err = r.get(ctx, tenant, location, FallbackWeekday)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Database("查询默认模板", err)
	}
	return d, nil
}

// Week 返回某地点的全部模板行，按星期索引
func (r *DefaultDemandRepository) Week(ctx context.Context, tenant, location string) (map[int]*DefaultDemand, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+defaultDemandColumns+` FROM default_demands
		 WHERE tenant = $1 AND location = $2`, tenant, location)
	if err != nil {
		return nil, apperrors.Database("列出默认模板", err)
	}
	defer rows.Close()

	out := make(map[int]*DefaultDemand)
	for rows.Next() {
		d, err := scanDefaultDemand(rows)
		if err != nil {
			return nil, apperrors.Database("列出默认模板", err)
		}
		out[d.Weekday] = d
	}
	return out, rows.Err()
}

func (r *DefaultDemandRepository) get(ctx context.Context, tenant, location string, weekday int) (*DefaultDemand, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+defaultDemandColumns+` FROM default_demands
		 WHERE tenant = $1 AND location = $2 AND weekday = $3`, tenant, location, weekday)
	return scanDefaultDemand(row)
}

func scanDefaultDemand(s Scanner) (*DefaultDemand, error) {
	d := &DefaultDemand{}
	err := s.Scan(&d.ID, &d.Tenant, &d.Location, &d.Weekday, &d.Items, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

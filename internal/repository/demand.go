package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// DemandRepositoryInterface 需求仓储接口
type DemandRepositoryInterface interface {
	Upsert(ctx context.Context, d *Demand) error
	GetByID(ctx context.Context, tenant string, id int64) (*Demand, error)
	GetByContentHash(ctx context.Context, tenant, hash string) (*Demand, error)
	ListSpanning(ctx context.Context, tenant, date string) ([]*Demand, error)
	List(ctx context.Context, tenant string, filter ListFilter) ([]*Demand, int, error)
	SetGenerated(ctx context.Context, tenant string, id int64, generated bool, solvedAt *time.Time) error
}

// DemandRepository 需求仓储
type DemandRepository struct {
	db DB
}

// NewDemandRepository 创建需求仓储
func NewDemandRepository(db DB) *DemandRepository {
	return &DemandRepository{db: db}
}

const demandColumns = `id, tenant, content_hash, raw_payload, date_from, date_to, schedule_generated, solved_at, created_at`

// Upsert 按 (tenant, content_hash) 插入或更新需求
// 相同规范载荷重复保存命中同一行；更新时清除生成标记。
func (r *DemandRepository) Upsert(ctx context.Context, d *Demand) error {
	query := `
		INSERT INTO demands (tenant, content_hash, raw_payload, date_from, date_to, schedule_generated)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (tenant, content_hash) DO UPDATE SET
			raw_payload = EXCLUDED.raw_payload,
			date_from = EXCLUDED.date_from,
			date_to = EXCLUDED.date_to,
			schedule_generated = FALSE,
			solved_at = NULL,
			updated_at = now()
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		d.Tenant, d.ContentHash, d.RawPayload, d.DateFrom, d.DateTo,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return apperrors.Database("保存需求", err)
	}
	d.ScheduleGenerated = false
	d.SolvedAt = nil
	return nil
}

// GetByID 按ID获取需求
func (r *DemandRepository) GetByID(ctx context.Context, tenant string, id int64) (*Demand, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+demandColumns+` FROM demands WHERE tenant = $1 AND id = $2`, tenant, id)
	d, err := scanDemand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("需求", itoa(id))
	}
	if err != nil {
		return nil, apperrors.Database("查询需求", err)
	}
	return d, nil
}

// GetByContentHash 按内容哈希获取需求
func (r *DemandRepository) GetByContentHash(ctx context.Context, tenant, hash string) (*Demand, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+demandColumns+` FROM demands WHERE tenant = $1 AND content_hash = $2`, tenant, hash)
	d, err := scanDemand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("需求", hash)
	}
	if err != nil {
		return nil, apperrors.Database("查询需求", err)
	}
	return d, nil
}

// ListSpanning 列出日期范围覆盖指定日期的需求，新的在前
// 日索引懒回填依赖该查询。
func (r *DemandRepository) ListSpanning(ctx context.Context, tenant, date string) ([]*Demand, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+demandColumns+` FROM demands
		 WHERE tenant = $1 AND date_from <= $2 AND date_to >= $2
		 ORDER BY created_at DESC, id DESC`, tenant, date)
	if err != nil {
		return nil, apperrors.Database("扫描需求", err)
	}
	defer rows.Close()

	var out []*Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, apperrors.Database("扫描需求", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// List 分页列出需求
func (r *DemandRepository) List(ctx context.Context, tenant string, filter ListFilter) ([]*Demand, int, error) {
	filter = filter.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM demands WHERE tenant = $1`, tenant).Scan(&total); err != nil {
		return nil, 0, apperrors.Database("统计需求", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+demandColumns+` FROM demands
		 WHERE tenant = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, tenant, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, apperrors.Database("列出需求", err)
	}
	defer rows.Close()

	var out []*Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, 0, apperrors.Database("列出需求", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// SetGenerated 更新生成标记与求解时间
func (r *DemandRepository) SetGenerated(ctx context.Context, tenant string, id int64, generated bool, solvedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE demands SET schedule_generated = $3, solved_at = $4, updated_at = now()
		 WHERE tenant = $1 AND id = $2`, tenant, id, generated, solvedAt)
	if err != nil {
		return apperrors.Database("更新需求状态", err)
	}
	return nil
}

// scanDemand 扫描一行需求
func scanDemand(s Scanner) (*Demand, error) {
	d := &Demand{}
	err := s.Scan(&d.ID, &d.Tenant, &d.ContentHash, &d.RawPayload,
		&d.DateFrom, &d.DateTo, &d.ScheduleGenerated, &d.SolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

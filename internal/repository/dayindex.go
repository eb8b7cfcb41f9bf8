package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/paiban/banbiao/internal/database"
	"github.com/paiban/banbiao/internal/metrics"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// DayIndexRepositoryInterface 日索引仓储接口
type DayIndexRepositoryInterface interface {
	Upsert(ctx context.Context, e *DayIndexEntry) error
	Latest(ctx context.Context, tenant, date, location string) (*DayIndexEntry, error)
	DeleteByDemand(ctx context.Context, tenant string, demandID int64) error
}

// DayIndexRepository 日索引仓储
// (tenant, date, location, day_hash) → demand 的物化视图，可随时重建。
type DayIndexRepository struct {
	db DB
}

// NewDayIndexRepository 创建日索引仓储
func NewDayIndexRepository(db DB) *DayIndexRepository {
	return &DayIndexRepository{db: db}
}

const dayIndexColumns = `id, tenant, date, location, day_hash, demand_id, created_at`

// Upsert 写入索引行，并发冲突时重取既有行
func (r *DayIndexRepository) Upsert(ctx context.Context, e *DayIndexEntry) error {
	query := `
		INSERT INTO day_demand_index (tenant, date, location, day_hash, demand_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant, date, location, day_hash) DO UPDATE SET
			demand_id = EXCLUDED.demand_id
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		e.Tenant, e.Date, e.Location, e.DayHash, e.DemandID,
	).Scan(&e.ID, &e.CreatedAt)
	if err == nil {
		return nil
	}
	if !database.IsUniqueViolation(err) {
		return apperrors.Database("写入日索引", err)
	}

	// 并发写入撞上唯一约束：重取一次
	metrics.RecordIndexRace()
	existing, ferr := r.getByHash(ctx, e.Tenant, e.Date, e.Location, e.DayHash)
	if ferr != nil {
		return apperrors.Wrap(ferr, apperrors.CodeIndexRace, "日索引并发冲突后重取失败")
	}
	*e = *existing
	return nil
}

// Latest 返回 (tenant, date, location) 最新的索引行，无则 ErrNoRows
func (r *DayIndexRepository) Latest(ctx context.Context, tenant, date, location string) (*DayIndexEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dayIndexColumns+` FROM day_demand_index
		 WHERE tenant = $1 AND date = $2 AND location = $3
		 ORDER BY created_at DESC, id DESC LIMIT 1`, tenant, date, location)
	e, err := scanDayIndex(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Database("查询日索引", err)
	}
	return e, nil
}

// DeleteByDemand 删除某个需求的全部索引行（重建前清理）
func (r *DayIndexRepository) DeleteByDemand(ctx context.Context, tenant string, demandID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM day_demand_index WHERE tenant = $1 AND demand_id = $2`, tenant, demandID)
	if err != nil {
		return apperrors.Database("清理日索引", err)
	}
	return nil
}

func (r *DayIndexRepository) getByHash(ctx context.Context, tenant, date, location, hash string) (*DayIndexEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dayIndexColumns+` FROM day_demand_index
		 WHERE tenant = $1 AND date = $2 AND location = $3 AND day_hash = $4`,
		tenant, date, location, hash)
	return scanDayIndex(row)
}

func scanDayIndex(s Scanner) (*DayIndexEntry, error) {
	e := &DayIndexEntry{}
	err := s.Scan(&e.ID, &e.Tenant, &e.Date, &e.Location, &e.DayHash, &e.DemandID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// ScheduleRepositoryInterface 班次仓储接口
type ScheduleRepositoryInterface interface {
	BulkInsert(ctx context.Context, shifts []*ScheduleShift) error
	DeleteByDemand(ctx context.Context, tenant string, demandID int64) (int64, error)
	ListByDemand(ctx context.Context, tenant string, demandID int64) ([]*ScheduleShift, error)
	ListByDemandDay(ctx context.Context, tenant string, demandID int64, date string) ([]*ScheduleShift, error)
	ListByDay(ctx context.Context, tenant, date, location string) ([]*ScheduleShift, error)
	GetByUID(ctx context.Context, tenant, shiftUID string) (*ScheduleShift, error)
	Update(ctx context.Context, s *ScheduleShift) error
}

// ScheduleRepository 班次仓储
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建班次仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const shiftColumns = `id, tenant, demand_id, shift_uid, date, location, start_time, end_time,
	demand_count, needs_experienced, assigned_employees, missing_minutes, meta,
	user_edited, confirmed, approved_by, approved_at, updated_at`

// BulkInsert 批量写入班次
func (r *ScheduleRepository) BulkInsert(ctx context.Context, shifts []*ScheduleShift) error {
	query := `
		INSERT INTO schedule_shifts
			(tenant, demand_id, shift_uid, date, location, start_time, end_time,
			 demand_count, needs_experienced, assigned_employees, missing_minutes, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, updated_at`
	for _, s := range shifts {
		assigned, err := json.Marshal(s.AssignedEmployees)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "序列化指派列表失败")
		}
		meta := s.Meta
		if len(meta) == 0 {
			meta = json.RawMessage("{}")
		}
		err = r.db.QueryRowContext(ctx, query,
			s.Tenant, s.DemandID, s.ShiftUID, s.Date, s.Location, s.Start, s.End,
			s.DemandCount, s.NeedsExperienced, assigned, s.MissingMinutes, meta,
		).Scan(&s.ID, &s.UpdatedAt)
		if err != nil {
			return apperrors.Database("写入班次", err)
		}
	}
	return nil
}

// DeleteByDemand 删除某需求的全部班次，返回删除行数
func (r *ScheduleRepository) DeleteByDemand(ctx context.Context, tenant string, demandID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule_shifts WHERE tenant = $1 AND demand_id = $2`, tenant, demandID)
	if err != nil {
		return 0, apperrors.Database("删除班次", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListByDemand 列出某需求的全部班次
func (r *ScheduleRepository) ListByDemand(ctx context.Context, tenant string, demandID int64) ([]*ScheduleShift, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM schedule_shifts
		 WHERE tenant = $1 AND demand_id = $2
		 ORDER BY date, location, start_time, end_time`, tenant, demandID)
	if err != nil {
		return nil, apperrors.Database("列出班次", err)
	}
	defer rows.Close()
	return collectShifts(rows)
}

// ListByDemandDay 列出某需求指定日期的班次
func (r *ScheduleRepository) ListByDemandDay(ctx context.Context, tenant string, demandID int64, date string) ([]*ScheduleShift, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM schedule_shifts
		 WHERE tenant = $1 AND demand_id = $2 AND date = $3
		 ORDER BY location, start_time, end_time`, tenant, demandID, date)
	if err != nil {
		return nil, apperrors.Database("列出班次", err)
	}
	defer rows.Close()
	return collectShifts(rows)
}

// ListByDay 列出某天的班次，location 为空表示不过滤地点
func (r *ScheduleRepository) ListByDay(ctx context.Context, tenant, date, location string) ([]*ScheduleShift, error) {
	query := `SELECT ` + shiftColumns + ` FROM schedule_shifts
		 WHERE tenant = $1 AND date = $2`
	args := []interface{}{tenant, date}
	if location != "" {
		query += ` AND location = $3`
		args = append(args, location)
	}
	query += ` ORDER BY location, start_time, end_time`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Database("列出班次", err)
	}
	defer rows.Close()
	return collectShifts(rows)
}

// GetByUID 按班次UID获取
func (r *ScheduleRepository) GetByUID(ctx context.Context, tenant, shiftUID string) (*ScheduleShift, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM schedule_shifts
		 WHERE tenant = $1 AND shift_uid = $2`, tenant, shiftUID)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("班次", shiftUID)
	}
	if err != nil {
		return nil, apperrors.Database("查询班次", err)
	}
	return s, nil
}

// Update 整体更新班次可变字段
func (r *ScheduleRepository) Update(ctx context.Context, s *ScheduleShift) error {
	assigned, err := json.Marshal(s.AssignedEmployees)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "序列化指派列表失败")
	}
	meta := s.Meta
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedule_shifts SET
			shift_uid = $3, date = $4, location = $5, start_time = $6, end_time = $7,
			demand_count = $8, needs_experienced = $9, assigned_employees = $10,
			missing_minutes = $11, meta = $12, user_edited = $13, confirmed = $14,
			approved_by = $15, approved_at = $16, updated_at = now()
		WHERE tenant = $1 AND id = $2`,
		s.Tenant, s.ID, s.ShiftUID, s.Date, s.Location, s.Start, s.End,
		s.DemandCount, s.NeedsExperienced, assigned, s.MissingMinutes, meta,
		s.UserEdited, s.Confirmed, s.ApprovedBy, s.ApprovedAt)
	if err != nil {
		return apperrors.Database("更新班次", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("班次", s.ShiftUID)
	}
	return nil
}

func collectShifts(rows *sql.Rows) ([]*ScheduleShift, error) {
	var out []*ScheduleShift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, apperrors.Database("扫描班次", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanShift(sc Scanner) (*ScheduleShift, error) {
	s := &ScheduleShift{}
	var assigned []byte
	err := sc.Scan(&s.ID, &s.Tenant, &s.DemandID, &s.ShiftUID, &s.Date, &s.Location,
		&s.Start, &s.End, &s.DemandCount, &s.NeedsExperienced, &assigned,
		&s.MissingMinutes, &s.Meta, &s.UserEdited, &s.Confirmed,
		&s.ApprovedBy, &s.ApprovedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(assigned) > 0 {
		if err := json.Unmarshal(assigned, &s.AssignedEmployees); err != nil {
			return nil, err
		}
	}
	return s, nil
}

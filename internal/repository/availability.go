package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// AvailabilityRepositoryInterface 可用性仓储接口
type AvailabilityRepositoryInterface interface {
	Upsert(ctx context.Context, a *Availability) error
	ListRange(ctx context.Context, tenant, dateFrom, dateTo string) ([]*Availability, error)
	ListByEmployee(ctx context.Context, tenant, employeeID string, filter ListFilter) ([]*Availability, error)
}

// AvailabilityRepository 可用性仓储
type AvailabilityRepository struct {
	db DB
}

// NewAvailabilityRepository 创建可用性仓储
func NewAvailabilityRepository(db DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, tenant, employee_id, date, experienced, hours_min, hours_max, available_slots, assigned_shift, updated_at`

// Upsert 按 (tenant, employee, date) 整体替换
func (r *AvailabilityRepository) Upsert(ctx context.Context, a *Availability) error {
	if len(a.AvailableSlots) == 0 {
		a.AvailableSlots = json.RawMessage("[]")
	}
	var assigned interface{}
	if len(a.AssignedShift) > 0 {
		assigned = []byte(a.AssignedShift)
	}
	query := `
		INSERT INTO availability (tenant, employee_id, date, experienced, hours_min, hours_max, available_slots, assigned_shift)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant, employee_id, date) DO UPDATE SET
			experienced = EXCLUDED.experienced,
			hours_min = EXCLUDED.hours_min,
			hours_max = EXCLUDED.hours_max,
			available_slots = EXCLUDED.available_slots,
			assigned_shift = EXCLUDED.assigned_shift,
			updated_at = now()
		RETURNING id, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		a.Tenant, a.EmployeeID, a.Date, a.Experienced, a.HoursMin, a.HoursMax,
		a.AvailableSlots, assigned,
	).Scan(&a.ID, &a.UpdatedAt)
	if err != nil {
		return apperrors.Database("保存可用性", err)
	}
	return nil
}

// ListRange 列出日期范围内的全部可用性记录，求解输入用
func (r *AvailabilityRepository) ListRange(ctx context.Context, tenant, dateFrom, dateTo string) ([]*Availability, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM availability
		 WHERE tenant = $1 AND date >= $2 AND date <= $3
		 ORDER BY employee_id, date`, tenant, dateFrom, dateTo)
	if err != nil {
		return nil, apperrors.Database("读取可用性", err)
	}
	defer rows.Close()
	return collectAvailability(rows)
}

// ListByEmployee 列出某员工的可用性记录
func (r *AvailabilityRepository) ListByEmployee(ctx context.Context, tenant, employeeID string, filter ListFilter) ([]*Availability, error) {
	filter = filter.Normalize()
	query := `SELECT ` + availabilityColumns + ` FROM availability
		 WHERE tenant = $1 AND employee_id = $2`
	args := []interface{}{tenant, employeeID}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		query += ` AND date >= $3`
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		query += ` AND date <= $` + itoa(int64(len(args)))
	}
	query += ` ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Database("读取可用性", err)
	}
	defer rows.Close()
	return collectAvailability(rows)
}

func collectAvailability(rows *sql.Rows) ([]*Availability, error) {
	var out []*Availability
	for rows.Next() {
		a := &Availability{}
		var assigned []byte
		err := rows.Scan(&a.ID, &a.Tenant, &a.EmployeeID, &a.Date, &a.Experienced,
			&a.HoursMin, &a.HoursMax, &a.AvailableSlots, &assigned, &a.UpdatedAt)
		if err != nil {
			return nil, apperrors.Database("扫描可用性", err)
		}
		if len(assigned) > 0 {
			a.AssignedShift = json.RawMessage(assigned)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

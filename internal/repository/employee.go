package repository

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// EmployeeRepositoryInterface 员工名录仓储接口
type EmployeeRepositoryInterface interface {
	Upsert(ctx context.Context, e *Employee) error
	Get(ctx context.Context, tenant, employeeID string) (*Employee, error)
	List(ctx context.Context, tenant string, filter ListFilter) ([]*Employee, error)
}

// EmployeeRepository 员工名录仓储，通知地址解析依赖它
type EmployeeRepository struct {
	db DB
}

// NewEmployeeRepository 创建员工名录仓储
func NewEmployeeRepository(db DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, tenant, employee_id, name, email, experienced, updated_at`

// Upsert 按 (tenant, employee_id) 更新名录条目
// 空字段不覆盖已有值，可用性批量写入时顺带维护名录。
func (r *EmployeeRepository) Upsert(ctx context.Context, e *Employee) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO employees (tenant, employee_id, name, email, experienced)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant, employee_id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE employees.name END,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE employees.email END,
			experienced = EXCLUDED.experienced,
			updated_at = now()
		RETURNING id, updated_at`,
		e.Tenant, e.EmployeeID, e.Name, e.Email, e.Experienced,
	).Scan(&e.ID, &e.UpdatedAt)
	if err != nil {
		return apperrors.Database("保存员工", err)
	}
	return nil
}

// Get 按员工ID获取名录条目
func (r *EmployeeRepository) Get(ctx context.Context, tenant, employeeID string) (*Employee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE tenant = $1 AND employee_id = $2`, tenant, employeeID)
	e := &Employee{}
	err := row.Scan(&e.ID, &e.Tenant, &e.EmployeeID, &e.Name, &e.Email, &e.Experienced, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("员工", employeeID)
	}
	if err != nil {
		return nil, apperrors.Database("查询员工", err)
	}
	return e, nil
}

// List 列出员工名录
func (r *EmployeeRepository) List(ctx context.Context, tenant string, filter ListFilter) ([]*Employee, error) {
	filter = filter.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE tenant = $1 ORDER BY employee_id LIMIT $2 OFFSET $3`,
		tenant, filter.Limit, filter.Offset)
	if err != nil {
		return nil, apperrors.Database("列出员工", err)
	}
	defer rows.Close()

	var out []*Employee
	for rows.Next() {
		e := &Employee{}
		err := rows.Scan(&e.ID, &e.Tenant, &e.EmployeeID, &e.Name, &e.Email, &e.Experienced, &e.UpdatedAt)
		if err != nil {
			return nil, apperrors.Database("列出员工", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

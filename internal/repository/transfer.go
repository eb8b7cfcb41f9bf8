package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// TransferRepositoryInterface 换班请求仓储接口
type TransferRepositoryInterface interface {
	Create(ctx context.Context, req *TransferRequest) error
	Get(ctx context.Context, tenant, id string) (*TransferRequest, error)
	List(ctx context.Context, tenant string, filter ListFilter) ([]*TransferRequest, error)
	Moderate(ctx context.Context, tenant, id, status, managerNote, approvedBy string, approvedAt time.Time) error
}

// TransferRepository 换班请求仓储
type TransferRepository struct {
	db DB
}

// NewTransferRepository 创建换班请求仓储
func NewTransferRepository(db DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, tenant, shift_uid, requested_by, action, target_employee,
	status, note, manager_note, approved_by, approved_at, created_at`

// Create 创建待审批请求
func (r *TransferRepository) Create(ctx context.Context, req *TransferRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = TransferStatusPending
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shift_transfer_requests
			(id, tenant, shift_uid, requested_by, action, target_employee, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		req.ID, req.Tenant, req.ShiftUID, req.RequestedBy, req.Action,
		req.TargetEmployee, req.Status, req.Note,
	).Scan(&req.CreatedAt)
	if err != nil {
		return apperrors.Database("创建换班请求", err)
	}
	return nil
}

// Get 按ID获取请求
func (r *TransferRepository) Get(ctx context.Context, tenant, id string) (*TransferRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM shift_transfer_requests
		 WHERE tenant = $1 AND id = $2`, tenant, id)
	req, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("换班请求", id)
	}
	if err != nil {
		return nil, apperrors.Database("查询换班请求", err)
	}
	return req, nil
}

// List 列出请求，支持按状态过滤
func (r *TransferRepository) List(ctx context.Context, tenant string, filter ListFilter) ([]*TransferRequest, error) {
	filter = filter.Normalize()
	query := `SELECT ` + transferColumns + ` FROM shift_transfer_requests WHERE tenant = $1`
	args := []interface{}{tenant}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(int64(len(args)+1)) +
		` OFFSET $` + itoa(int64(len(args)+2))
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Database("列出换班请求", err)
	}
	defer rows.Close()

	var out []*TransferRequest
	for rows.Next() {
		req, err := scanTransfer(rows)
		if err != nil {
			return nil, apperrors.Database("列出换班请求", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Moderate 审批状态迁移，仅对 pending 生效
// 二次审批命中零行更新，调用方据此报状态冲突。
func (r *TransferRepository) Moderate(ctx context.Context, tenant, id, status, managerNote, approvedBy string, approvedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shift_transfer_requests SET
			status = $3, manager_note = $4, approved_by = $5, approved_at = $6
		WHERE tenant = $1 AND id = $2 AND status = $7`,
		tenant, id, status, managerNote, approvedBy, approvedAt, TransferStatusPending)
	if err != nil {
		return apperrors.Database("审批换班请求", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ConflictState("换班请求", "已被处理")
	}
	return nil
}

func scanTransfer(s Scanner) (*TransferRequest, error) {
	req := &TransferRequest{}
	err := s.Scan(&req.ID, &req.Tenant, &req.ShiftUID, &req.RequestedBy, &req.Action,
		&req.TargetEmployee, &req.Status, &req.Note, &req.ManagerNote,
		&req.ApprovedBy, &req.ApprovedAt, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

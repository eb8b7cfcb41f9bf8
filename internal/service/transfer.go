package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/paiban/banbiao/internal/metrics"
	"github.com/paiban/banbiao/internal/notify"
	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
)

// TransferService 换班请求服务
//
// drop：指派中的员工申请放弃班次；claim：未指派的员工申请认领。
// 审批通过时在同一事务里改写班次指派。
type TransferService struct {
	db       TxRunner
	base     *Repos
	repos    ReposFactory
	notifier *notify.Notifier
}

// NewTransferService 创建换班服务
func NewTransferService(db TxRunner, base *Repos, factory ReposFactory, notifier *notify.Notifier) *TransferService {
	if factory == nil {
		factory = NewRepos
	}
	return &TransferService{db: db, base: base, repos: factory, notifier: notifier}
}

// CreateInput 换班请求载荷
type CreateInput struct {
	ShiftUID       string `json:"shift_uid"`
	Action         string `json:"action"`
	TargetEmployee string `json:"target_employee,omitempty"`
	Note           string `json:"note,omitempty"`
}

// Create 发起换班请求
func (s *TransferService) Create(ctx context.Context, id *tenant.Identity, in *CreateInput) (*repository.TransferRequest, error) {
	if in.ShiftUID == "" {
		return nil, apperrors.InvalidInput("shift_uid", "不能为空")
	}
	if in.Action != repository.TransferActionDrop && in.Action != repository.TransferActionClaim {
		return nil, apperrors.InvalidInput("action", "只支持 drop 或 claim")
	}

	requester := id.UserID
	if requester == "" {
		return nil, apperrors.InvalidInput("user", "缺少用户标识")
	}

	shift, err := s.base.Schedule.GetByUID(ctx, id.TenantID, in.ShiftUID)
	if err != nil {
		return nil, err
	}

	assigned := contains(shift.AssignedEmployees, requester)
	switch in.Action {
	case repository.TransferActionDrop:
		if !assigned {
			return nil, apperrors.ConflictState("换班请求", "发起人不在该班次的指派名单中")
		}
	case repository.TransferActionClaim:
		if assigned {
			return nil, apperrors.ConflictState("换班请求", "发起人已在该班次的指派名单中")
		}
	}

	req := &repository.TransferRequest{
		Tenant:         id.TenantID,
		ShiftUID:       in.ShiftUID,
		RequestedBy:    requester,
		Action:         in.Action,
		TargetEmployee: in.TargetEmployee,
		Note:           in.Note,
	}
	if err := s.base.Transfers.Create(ctx, req); err != nil {
		return nil, err
	}
	metrics.RecordTransfer(req.Action, req.Status)

	logger.Info().
		Str("tenant", id.TenantID).
		Str("request_id", req.ID).
		Str("action", req.Action).
		Str("shift_uid", req.ShiftUID).
		Msg("换班请求已创建")
	return req, nil
}

// Approve 审批通过换班请求并改写班次指派
// 只有 pending 状态可审批；班次改写与状态流转在同一事务内完成。
func (s *TransferService) Approve(ctx context.Context, id *tenant.Identity, requestID, managerNote string) (*repository.TransferRequest, error) {
	if !id.Role.CanModerate() {
		return nil, apperrors.Forbidden("需要管理员角色")
	}

	var req *repository.TransferRequest
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		var err error
		req, err = r.Transfers.Get(ctx, id.TenantID, requestID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := r.Transfers.Moderate(ctx, id.TenantID, requestID,
			repository.TransferStatusApproved, managerNote, id.UserID, now); err != nil {
			return err
		}

		shift, err := r.Schedule.GetByUID(ctx, id.TenantID, req.ShiftUID)
		if err != nil {
			return err
		}
		if err := applyTransfer(shift, req); err != nil {
			return err
		}
		shift.UserEdited = true
		shift.Confirmed = true
		shift.ApprovedBy = id.UserID
		shift.ApprovedAt = &now
		if err := r.Schedule.Update(ctx, shift); err != nil {
			return err
		}

		req.Status = repository.TransferStatusApproved
		req.ManagerNote = managerNote
		req.ApprovedBy = id.UserID
		req.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransfer(req.Action, req.Status)
	if s.notifier != nil {
		s.notifier.TransferModerated(ctx, id.TenantID, req)
	}
	logger.Info().
		Str("tenant", id.TenantID).
		Str("request_id", req.ID).
		Str("action", req.Action).
		Msg("换班请求已通过")
	return req, nil
}

// applyTransfer 按请求类型改写指派名单
func applyTransfer(shift *repository.ScheduleShift, req *repository.TransferRequest) error {
	switch req.Action {
	case repository.TransferActionDrop:
		out := make([]string, 0, len(shift.AssignedEmployees))
		for _, e := range shift.AssignedEmployees {
			if e != req.RequestedBy {
				out = append(out, e)
			}
		}
		if len(out) == len(shift.AssignedEmployees) {
			return apperrors.ConflictState("换班请求", "发起人已不在指派名单中")
		}
		if req.TargetEmployee != "" && !contains(out, req.TargetEmployee) {
			out = append(out, req.TargetEmployee)
		}
		shift.AssignedEmployees = dedupe(out)
	case repository.TransferActionClaim:
		if contains(shift.AssignedEmployees, req.RequestedBy) {
			return apperrors.ConflictState("换班请求", "发起人已在指派名单中")
		}
		shift.AssignedEmployees = dedupe(append(shift.AssignedEmployees, req.RequestedBy))
	default:
		return apperrors.InvalidInput("action", "未知的换班类型")
	}
	return nil
}

// Reject 驳回换班请求
func (s *TransferService) Reject(ctx context.Context, id *tenant.Identity, requestID, managerNote string) (*repository.TransferRequest, error) {
	if !id.Role.CanModerate() {
		return nil, apperrors.Forbidden("需要管理员角色")
	}

	var req *repository.TransferRequest
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		var err error
		req, err = r.Transfers.Get(ctx, id.TenantID, requestID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := r.Transfers.Moderate(ctx, id.TenantID, requestID,
			repository.TransferStatusRejected, managerNote, id.UserID, now); err != nil {
			return err
		}
		req.Status = repository.TransferStatusRejected
		req.ManagerNote = managerNote
		req.ApprovedBy = id.UserID
		req.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransfer(req.Action, req.Status)
	if s.notifier != nil {
		s.notifier.TransferModerated(ctx, id.TenantID, req)
	}
	return req, nil
}

// Get 读取换班请求
func (s *TransferService) Get(ctx context.Context, id *tenant.Identity, requestID string) (*repository.TransferRequest, error) {
	return s.base.Transfers.Get(ctx, id.TenantID, requestID)
}

// List 列出换班请求
func (s *TransferService) List(ctx context.Context, id *tenant.Identity, filter repository.ListFilter) ([]*repository.TransferRequest, error) {
	return s.base.Transfers.List(ctx, id.TenantID, filter)
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

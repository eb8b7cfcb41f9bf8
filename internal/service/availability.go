package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
	"github.com/paiban/banbiao/pkg/timeslot"
)

// AvailabilityService 员工可用性服务
type AvailabilityService struct {
	db    TxRunner
	base  *Repos
	repos ReposFactory
}

// NewAvailabilityService 创建可用性服务
func NewAvailabilityService(db TxRunner, base *Repos, factory ReposFactory) *AvailabilityService {
	if factory == nil {
		factory = NewRepos
	}
	return &AvailabilityService{db: db, base: base, repos: factory}
}

// DayAvailability 单天可用性载荷
type DayAvailability struct {
	Date           string          `json:"date"`
	AvailableSlots json.RawMessage `json:"available_slots"`
	AssignedShift  json.RawMessage `json:"assigned_shift,omitempty"`
}

// EmployeeAvailability 一名员工的批量可用性载荷
type EmployeeAvailability struct {
	EmployeeID     string            `json:"employee_id"`
	EmployeeName   string            `json:"employee_name,omitempty"`
	Email          string            `json:"email,omitempty"`
	Experienced    bool              `json:"experienced"`
	HoursMin       int               `json:"hours_min"`
	HoursMax       int               `json:"hours_max"`
	Availabilities []DayAvailability `json:"availabilities"`
}

// SaveBulk 批量保存员工可用性
// 同时维护员工名录；逐天整条替换，available_slots 先规范化再落库。
func (s *AvailabilityService) SaveBulk(ctx context.Context, id *tenant.Identity, entries []EmployeeAvailability) (int, error) {
	if len(entries) == 0 {
		return 0, apperrors.InvalidInput("entries", "载荷为空")
	}
	for _, e := range entries {
		if e.EmployeeID == "" {
			return 0, apperrors.InvalidInput("employee_id", "不能为空")
		}
		if e.HoursMin < 0 || (e.HoursMax > 0 && e.HoursMax < e.HoursMin) {
			return 0, apperrors.InvalidInput("hours_min", "工时上下限不一致")
		}
		for _, d := range e.Availabilities {
			if _, err := ParseDate(d.Date); err != nil {
				return 0, err
			}
		}
	}

	saved := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		for _, e := range entries {
			emp := &repository.Employee{
				Tenant:      id.TenantID,
				EmployeeID:  e.EmployeeID,
				Name:        e.EmployeeName,
				Email:       e.Email,
				Experienced: e.Experienced,
			}
			if err := r.Employees.Upsert(ctx, emp); err != nil {
				return err
			}
			for _, d := range e.Availabilities {
				slots := canon.ValidateSlots(canon.CoerceSlots(d.AvailableSlots))
				slotsJSON, err := json.Marshal(slots)
				if err != nil {
					return apperrors.Wrap(err, apperrors.CodeInternal, "序列化可用时段失败")
				}
				a := &repository.Availability{
					Tenant:         id.TenantID,
					EmployeeID:     e.EmployeeID,
					Date:           d.Date,
					Experienced:    e.Experienced,
					HoursMin:       e.HoursMin,
					HoursMax:       e.HoursMax,
					AvailableSlots: slotsJSON,
					AssignedShift:  normalizeAssigned(d.AssignedShift),
				}
				if err := r.Availability.Upsert(ctx, a); err != nil {
					return err
				}
				saved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info().
		Str("tenant", id.TenantID).
		Int("employees", len(entries)).
		Int("days", saved).
		Msg("可用性已保存")
	return saved, nil
}

// normalizeAssigned 规范化预指派字段的时间并原样保留其余键
func normalizeAssigned(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	for _, key := range []string{"start", "end"} {
		if v, ok := m[key].(string); ok {
			if norm := timeslot.NormHHMM(v); norm != "" {
				m[key] = norm
			}
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return out
}

// ListRange 列出日期范围内的全部可用性
func (s *AvailabilityService) ListRange(ctx context.Context, id *tenant.Identity, dateFrom, dateTo string) ([]*repository.Availability, error) {
	if _, _, err := ValidateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}
	return s.base.Availability.ListRange(ctx, id.TenantID, dateFrom, dateTo)
}

// ListByEmployee 列出某员工的可用性
func (s *AvailabilityService) ListByEmployee(ctx context.Context, id *tenant.Identity, employeeID string, filter repository.ListFilter) ([]*repository.Availability, error) {
	if employeeID == "" {
		return nil, apperrors.InvalidInput("employee_id", "不能为空")
	}
	return s.base.Availability.ListByEmployee(ctx, id.TenantID, employeeID, filter)
}

// ListEmployees 列出员工名录
func (s *AvailabilityService) ListEmployees(ctx context.Context, id *tenant.Identity, filter repository.ListFilter) ([]*repository.Employee, error) {
	return s.base.Employees.List(ctx, id.TenantID, filter)
}

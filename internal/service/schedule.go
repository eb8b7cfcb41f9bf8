package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/paiban/banbiao/internal/metrics"
	"github.com/paiban/banbiao/internal/notify"
	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
	"github.com/paiban/banbiao/pkg/rules"
	"github.com/paiban/banbiao/pkg/solver"
	"github.com/paiban/banbiao/pkg/timeslot"
)

// ScheduleService 排班生成与班次变更服务
type ScheduleService struct {
	db       TxRunner
	base     *Repos
	repos    ReposFactory
	demands  *DemandService
	solver   *solver.Solver
	notifier *notify.Notifier
}

// NewScheduleService 创建排班服务
func NewScheduleService(db TxRunner, base *Repos, factory ReposFactory, demands *DemandService, slv *solver.Solver, notifier *notify.Notifier) *ScheduleService {
	if factory == nil {
		factory = NewRepos
	}
	return &ScheduleService{
		db: db, base: base, repos: factory,
		demands: demands, solver: slv, notifier: notifier,
	}
}

// Summary 排班结果摘要
type Summary struct {
	Uncovered    []solver.ShiftResult           `json:"uncovered"`
	HoursSummary map[string]solver.HoursSummary `json:"hours_summary"`
}

// GenerateResult 排班生成结果
type GenerateResult struct {
	DemandID    int64                       `json:"demand_id,omitempty"`
	Persisted   bool                        `json:"persisted"`
	Assignments []*repository.ScheduleShift `json:"assignments"`
	Summary     Summary                     `json:"summary"`
}

// shiftMeta 班次 meta 字段结构
type shiftMeta struct {
	AssignedEmployeesDetail []solver.EmployeeAssignment    `json:"assigned_employees_detail"`
	MissingSegments         []solver.MissingSegment        `json:"missing_segments"`
	HoursSummary            map[string]solver.HoursSummary `json:"hours_summary,omitempty"`
}

// GenerateDay 生成单日排班
// items 给定时先保存需求；persist=false 时只求解不落库。
func (s *ScheduleService) GenerateDay(ctx context.Context, id *tenant.Identity, date, location string, items []canon.TemplateItem, persist, force bool) (*GenerateResult, error) {
	if !persist {
		dayItems, err := s.resolveDayItems(ctx, id, date, location, items)
		if err != nil {
			return nil, err
		}
		return s.solveAdHoc(ctx, id.TenantID, dayItems, date, date)
	}

	var demand *repository.Demand
	if len(items) > 0 {
		var err error
		demand, _, err = s.demands.SaveDay(ctx, id, date, location, items)
		if err != nil {
			return nil, err
		}
		// 载荷刚替换过，强制重算
		force = true
	} else {
		var err error
		demand, err = s.resolveDayDemand(ctx, id, date, location)
		if err != nil {
			return nil, err
		}
	}
	return s.EnsureSchedule(ctx, id, demand.ID, force)
}

// GenerateRange 生成日期范围排班
func (s *ScheduleService) GenerateRange(ctx context.Context, id *tenant.Identity, dateFrom, dateTo, location string, items []canon.DayItem, persist, force bool) (*GenerateResult, error) {
	if !persist {
		from, to, err := ValidateRange(dateFrom, dateTo)
		if err != nil {
			return nil, err
		}
		var all []canon.DayItem
		provided := canon.GroupByDayLocation(items)
		for _, date := range DaysBetween(from, to) {
			key := canon.DayLocation{Date: date, Location: location}
			if group, ok := provided[key]; ok {
				all = append(all, canon.CanonicalizeDay(canon.Strip(group), date, location)...)
				continue
			}
			dayItems, err := s.resolveDayItems(ctx, id, date, location, nil)
			if err != nil {
				if apperrors.Is(err, apperrors.CodeInvalidInput) {
					continue
				}
				return nil, err
			}
			all = append(all, dayItems...)
		}
		if len(all) == 0 {
			return nil, apperrors.InvalidInput("items", "范围内没有任何需求条目")
		}
		return s.solveAdHoc(ctx, id.TenantID, all, dateFrom, dateTo)
	}

	demand, _, err := s.demands.SaveRange(ctx, id, dateFrom, dateTo, location, items)
	if err != nil {
		return nil, err
	}
	return s.EnsureSchedule(ctx, id, demand.ID, true)
}

// EnsureSchedule 确保某需求存在排班
// force 或尚无班次时：删旧、求解、批量写入，单事务完成；否则原样返回。
func (s *ScheduleService) EnsureSchedule(ctx context.Context, id *tenant.Identity, demandID int64, force bool) (*GenerateResult, error) {
	demand, err := s.base.Demands.GetByID(ctx, id.TenantID, demandID)
	if err != nil {
		return nil, err
	}

	if !force {
		existing, err := s.base.Schedule.ListByDemand(ctx, id.TenantID, demandID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &GenerateResult{
				DemandID:    demandID,
				Persisted:   true,
				Assignments: existing,
				Summary:     summaryFromShifts(existing),
			}, nil
		}
	}

	var payload []canon.DayItem
	if err := json.Unmarshal(demand.RawPayload, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "需求载荷格式错误")
	}

	var result *GenerateResult
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)

		if _, err := r.Schedule.DeleteByDemand(ctx, id.TenantID, demandID); err != nil {
			return err
		}
		solved, err := s.solve(ctx, r, id.TenantID, payload, demand.DateFrom, demand.DateTo)
		if err != nil {
			return err
		}
		shifts := buildShiftRows(id.TenantID, demandID, solved)
		if err := r.Schedule.BulkInsert(ctx, shifts); err != nil {
			return err
		}
		now := time.Now()
		if err := r.Demands.SetGenerated(ctx, id.TenantID, demandID, true, &now); err != nil {
			return err
		}
		result = &GenerateResult{
			DemandID:    demandID,
			Persisted:   true,
			Assignments: shifts,
			Summary:     Summary{Uncovered: solved.Uncovered, HoursSummary: solved.HoursSummary},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("tenant", id.TenantID).
		Int64("demand_id", demandID).
		Int("shifts", len(result.Assignments)).
		Msg("排班已生成")
	return result, nil
}

// GetSchedule 读取某需求的全部班次
func (s *ScheduleService) GetSchedule(ctx context.Context, id *tenant.Identity, demandID int64) (*GenerateResult, error) {
	demand, err := s.base.Demands.GetByID(ctx, id.TenantID, demandID)
	if err != nil {
		return nil, err
	}
	shifts, err := s.base.Schedule.ListByDemand(ctx, id.TenantID, demand.ID)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		DemandID:    demandID,
		Persisted:   true,
		Assignments: shifts,
		Summary:     summaryFromShifts(shifts),
	}, nil
}

// GetScheduleDay 读取某需求指定日期的班次
func (s *ScheduleService) GetScheduleDay(ctx context.Context, id *tenant.Identity, demandID int64, date string) ([]*repository.ScheduleShift, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return s.base.Schedule.ListByDemandDay(ctx, id.TenantID, demandID, date)
}

// GetDaySchedule 读取某天的排班：有持久化班次直接返回，否则经日索引惰性生成
func (s *ScheduleService) GetDaySchedule(ctx context.Context, id *tenant.Identity, date, location string) ([]*repository.ScheduleShift, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	shifts, err := s.base.Schedule.ListByDay(ctx, id.TenantID, date, location)
	if err != nil {
		return nil, err
	}
	if len(shifts) > 0 {
		return shifts, nil
	}

	demand, err := s.resolveDayDemand(ctx, id, date, location)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return []*repository.ScheduleShift{}, nil
		}
		return nil, err
	}
	result, err := s.EnsureSchedule(ctx, id, demand.ID, false)
	if err != nil {
		return nil, err
	}
	out := result.Assignments[:0:0]
	for _, shift := range result.Assignments {
		if shift.Date == date && (location == "" || shift.Location == location) {
			out = append(out, shift)
		}
	}
	return out, nil
}

// resolveDayDemand 经日索引找到某天的需求，缺索引时由保存管线补建
func (s *ScheduleService) resolveDayDemand(ctx context.Context, id *tenant.Identity, date, location string) (*repository.Demand, error) {
	day, err := s.demands.GetDay(ctx, id, date, location)
	if err != nil {
		return nil, err
	}
	if day.DemandID != 0 {
		return s.base.Demands.GetByID(ctx, id.TenantID, day.DemandID)
	}
	if len(day.Items) == 0 {
		return nil, apperrors.NotFound("需求", date)
	}
	// 只有默认模板：落一条单日需求再生成
	demand, _, err := s.demands.SaveDay(ctx, id, date, location, day.Items)
	return demand, err
}

// resolveDayItems 汇总某天用于求解的规范条目
func (s *ScheduleService) resolveDayItems(ctx context.Context, id *tenant.Identity, date, location string, items []canon.TemplateItem) ([]canon.DayItem, error) {
	if len(items) > 0 {
		out := canon.CanonicalizeDay(items, date, location)
		if len(out) == 0 {
			return nil, apperrors.InvalidInput("items", "没有有效的需求条目")
		}
		return out, nil
	}
	day, err := s.demands.GetDay(ctx, id, date, location)
	if err != nil {
		return nil, err
	}
	if len(day.Items) == 0 {
		return nil, apperrors.InvalidInput("items", "该日没有需求条目")
	}
	return canon.CanonicalizeDay(day.Items, date, location), nil
}

// solveAdHoc 不落库求解
func (s *ScheduleService) solveAdHoc(ctx context.Context, tenantID string, items []canon.DayItem, dateFrom, dateTo string) (*GenerateResult, error) {
	solved, err := s.solve(ctx, s.base, tenantID, items, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		Persisted:   false,
		Assignments: buildShiftRows(tenantID, 0, solved),
		Summary:     Summary{Uncovered: solved.Uncovered, HoursSummary: solved.HoursSummary},
	}, nil
}

// solve 应用规则引擎后求解
func (s *ScheduleService) solve(ctx context.Context, r *Repos, tenantID string, items []canon.DayItem, dateFrom, dateTo string) (*solver.Result, error) {
	adjustments, err := r.Rules.ActiveAdjustments(ctx, tenantID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	adjusted := rules.Apply(items, adjustments)

	avails, err := r.Availability.ListRange(ctx, tenantID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	input := solver.Input{
		Shifts:         toSolverShifts(adjusted),
		Availabilities: toSolverAvailabilities(avails),
	}
	result, err := s.solver.Solve(ctx, input)
	if err != nil {
		return nil, err
	}
	metrics.RecordSolverRun(tenantID, result.TimedOut, result.Duration, result.TotalMissingMinutes)
	return result, nil
}

// toSolverShifts 规范条目转求解班次，时间解析失败的条目丢弃
func toSolverShifts(items []canon.DayItem) []solver.Shift {
	out := make([]solver.Shift, 0, len(items))
	for _, it := range items {
		start, err1 := timeslot.ToMinutes(it.Start)
		end, err2 := timeslot.ToMinutes(it.End)
		if err1 != nil || err2 != nil || !timeslot.ValidInterval(start, end) {
			continue
		}
		out = append(out, solver.Shift{
			Date:             it.Date,
			Location:         it.Location,
			Start:            start,
			End:              end,
			Demand:           it.Demand,
			NeedsExperienced: it.NeedsExperienced,
		})
	}
	return out
}

// storedPreAssignment 可用性记录里的预指派 JSON 结构
type storedPreAssignment struct {
	Date      string `json:"date"`
	Location  string `json:"location"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Confirmed bool   `json:"confirmed"`
}

// toSolverAvailabilities 可用性记录转求解输入
func toSolverAvailabilities(avails []*repository.Availability) []solver.Availability {
	out := make([]solver.Availability, 0, len(avails))
	for _, a := range avails {
		sa := solver.Availability{
			EmployeeID:  a.EmployeeID,
			Date:        a.Date,
			Experienced: a.Experienced,
			HoursMin:    a.HoursMin,
			HoursMax:    a.HoursMax,
		}
		for _, slot := range canon.CoerceSlots(a.AvailableSlots) {
			start, err1 := timeslot.ToMinutes(slot.Start)
			end, err2 := timeslot.ToMinutes(slot.End)
			if err1 != nil || err2 != nil {
				continue
			}
			sa.Slots = append(sa.Slots, solver.Interval{Start: start, End: end})
		}
		if len(a.AssignedShift) > 0 {
			var pre storedPreAssignment
			if err := json.Unmarshal(a.AssignedShift, &pre); err == nil && pre.Confirmed {
				start, err1 := timeslot.ToMinutes(timeslot.NormHHMM(pre.Start))
				end, err2 := timeslot.ToMinutes(timeslot.NormHHMM(pre.End))
				if err1 == nil && err2 == nil {
					sa.AssignedShift = &solver.PreAssignment{
						Date:     pre.Date,
						Location: pre.Location,
						Start:    start,
						End:      end,
					}
				}
			}
		}
		out = append(out, sa)
	}
	return out
}

// buildShiftRows 把求解结果映射为持久化班次行
func buildShiftRows(tenantID string, demandID int64, solved *solver.Result) []*repository.ScheduleShift {
	out := make([]*repository.ScheduleShift, 0, len(solved.Shifts))
	for _, sr := range solved.Shifts {
		meta := shiftMeta{
			AssignedEmployeesDetail: sr.AssignedDetail,
			MissingSegments:         sr.MissingSegments,
			HoursSummary:            solved.HoursSummary,
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			metaJSON = json.RawMessage("{}")
		}
		assigned := sr.AssignedEmployees
		if assigned == nil {
			assigned = []string{}
		}
		out = append(out, &repository.ScheduleShift{
			Tenant:            tenantID,
			DemandID:          demandID,
			ShiftUID:          ShiftUID(demandID, sr.Date, sr.Location, sr.Start, sr.End),
			Date:              sr.Date,
			Location:          sr.Location,
			Start:             sr.Start,
			End:               sr.End,
			DemandCount:       sr.Demand,
			NeedsExperienced:  sr.NeedsExperienced,
			AssignedEmployees: assigned,
			MissingMinutes:    sr.MissingMinutes,
			Meta:              metaJSON,
		})
	}
	return out
}

// summaryFromShifts 从持久化班次还原摘要
func summaryFromShifts(shifts []*repository.ScheduleShift) Summary {
	sum := Summary{HoursSummary: map[string]solver.HoursSummary{}}
	for _, shift := range shifts {
		var meta shiftMeta
		if len(shift.Meta) > 0 {
			if err := json.Unmarshal(shift.Meta, &meta); err != nil {
				continue
			}
		}
		for emp, hs := range meta.HoursSummary {
			sum.HoursSummary[emp] = hs
		}
		if shift.MissingMinutes > 0 {
			start, _ := timeslot.ToMinutes(shift.Start)
			end, _ := timeslot.ToMinutes(shift.End)
			sum.Uncovered = append(sum.Uncovered, solver.ShiftResult{
				Date:              shift.Date,
				Location:          shift.Location,
				Start:             shift.Start,
				End:               shift.End,
				Demand:            shift.DemandCount,
				NeedsExperienced:  shift.NeedsExperienced,
				AssignedEmployees: shift.AssignedEmployees,
				MissingSegments:   meta.MissingSegments,
				MissingMinutes:    shift.MissingMinutes,
				Shift: solver.Shift{
					Date: shift.Date, Location: shift.Location,
					Start: start, End: end,
					Demand: shift.DemandCount, NeedsExperienced: shift.NeedsExperienced,
				},
			})
		}
	}
	return sum
}

// ShiftPatch 班次编辑载荷，nil 字段不修改
type ShiftPatch struct {
	Date                    *string          `json:"date,omitempty"`
	Location                *string          `json:"location,omitempty"`
	Start                   *string          `json:"start,omitempty"`
	End                     *string          `json:"end,omitempty"`
	Demand                  *int             `json:"demand,omitempty"`
	AssignedEmployees       *[]string        `json:"assigned_employees,omitempty"`
	NeedsExperienced        *bool            `json:"needs_experienced,omitempty"`
	MissingMinutes          *int             `json:"missing_minutes,omitempty"`
	Confirmed               *bool            `json:"confirmed,omitempty"`
	AssignedEmployeesDetail *json.RawMessage `json:"assigned_employees_detail,omitempty"`
	MissingSegments         *json.RawMessage `json:"missing_segments,omitempty"`
}

// GetShift 按UID读取班次
func (s *ScheduleService) GetShift(ctx context.Context, id *tenant.Identity, shiftUID string) (*repository.ScheduleShift, error) {
	return s.base.Schedule.GetByUID(ctx, id.TenantID, shiftUID)
}

// UpdateShift 手工编辑班次
// 任何编辑都会置 user_edited 并撤销既有审批。
func (s *ScheduleService) UpdateShift(ctx context.Context, id *tenant.Identity, shiftUID string, patch *ShiftPatch) (*repository.ScheduleShift, error) {
	var updated *repository.ScheduleShift
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		shift, err := r.Schedule.GetByUID(ctx, id.TenantID, shiftUID)
		if err != nil {
			return err
		}
		if err := applyPatch(shift, patch); err != nil {
			return err
		}
		shift.UserEdited = true
		shift.ApprovedBy = ""
		shift.ApprovedAt = nil
		if err := r.Schedule.Update(ctx, shift); err != nil {
			return err
		}
		updated = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyPatch 套用补丁并维护 shift_uid 与 meta
func applyPatch(shift *repository.ScheduleShift, patch *ShiftPatch) error {
	if patch.Date != nil {
		if _, err := ParseDate(*patch.Date); err != nil {
			return err
		}
		shift.Date = *patch.Date
	}
	if patch.Location != nil {
		shift.Location = *patch.Location
	}
	if patch.Start != nil {
		norm := timeslot.NormHHMM(*patch.Start)
		if norm == "" {
			return apperrors.InvalidInput("start", "无法解析的时间")
		}
		shift.Start = norm
	}
	if patch.End != nil {
		norm := timeslot.NormHHMM(*patch.End)
		if norm == "" {
			return apperrors.InvalidInput("end", "无法解析的时间")
		}
		shift.End = norm
	}
	startMin, err1 := timeslot.ToMinutes(shift.Start)
	endMin, err2 := timeslot.ToMinutes(shift.End)
	if err1 != nil || err2 != nil || !timeslot.ValidInterval(startMin, endMin) {
		return apperrors.New(apperrors.CodeInvalidTimeRange, "班次时间区间无效")
	}
	if patch.Demand != nil {
		if *patch.Demand < 0 {
			return apperrors.InvalidInput("demand", "不能为负")
		}
		shift.DemandCount = *patch.Demand
	}
	if patch.AssignedEmployees != nil {
		shift.AssignedEmployees = dedupe(*patch.AssignedEmployees)
	}
	if patch.NeedsExperienced != nil {
		shift.NeedsExperienced = *patch.NeedsExperienced
	}
	if patch.MissingMinutes != nil {
		if *patch.MissingMinutes < 0 {
			return apperrors.InvalidInput("missing_minutes", "不能为负")
		}
		shift.MissingMinutes = *patch.MissingMinutes
	}
	if patch.Confirmed != nil {
		shift.Confirmed = *patch.Confirmed
	}
	if patch.AssignedEmployeesDetail != nil || patch.MissingSegments != nil {
		var meta shiftMeta
		if len(shift.Meta) > 0 {
			_ = json.Unmarshal(shift.Meta, &meta)
		}
		if patch.AssignedEmployeesDetail != nil {
			if err := json.Unmarshal(*patch.AssignedEmployeesDetail, &meta.AssignedEmployeesDetail); err != nil {
				return apperrors.InvalidInput("assigned_employees_detail", "格式错误")
			}
		}
		if patch.MissingSegments != nil {
			if err := json.Unmarshal(*patch.MissingSegments, &meta.MissingSegments); err != nil {
				return apperrors.InvalidInput("missing_segments", "格式错误")
			}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "序列化 meta 失败")
		}
		shift.Meta = metaJSON
	}
	shift.ShiftUID = ShiftUID(shift.DemandID, shift.Date, shift.Location, shift.Start, shift.End)
	return nil
}

// ApproveShift 审批班次，需要 manager/owner 角色
func (s *ScheduleService) ApproveShift(ctx context.Context, id *tenant.Identity, shiftUID, note string) (*repository.ScheduleShift, error) {
	if !id.Role.CanModerate() {
		return nil, apperrors.Forbidden("需要管理员角色")
	}

	var approved *repository.ScheduleShift
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		shift, err := r.Schedule.GetByUID(ctx, id.TenantID, shiftUID)
		if err != nil {
			return err
		}
		now := time.Now()
		shift.Confirmed = true
		shift.ApprovedBy = id.UserID
		shift.ApprovedAt = &now
		if err := r.Schedule.Update(ctx, shift); err != nil {
			return err
		}
		approved = shift
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.ShiftApproved(ctx, id.TenantID, shiftUID, approved.AssignedEmployees, note)
	}
	return approved, nil
}

// dedupe 保序去重
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/banbiao/internal/repository"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/rules"
)

// 内存仓储桩，供服务层测试使用。
// passthroughTx 直接执行事务体，fakeRepos 工厂忽略句柄返回同一组桩。

type passthroughTx struct{}

func (passthroughTx) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type memStore struct {
	demands      *memDemands
	dayIndex     *memDayIndex
	defaults     *memDefaults
	availability *memAvailability
	schedule     *memSchedule
	rules        *memRules
	transfers    *memTransfers
	employees    *memEmployees
	locations    *memLocations
}

func newMemStore() *memStore {
	return &memStore{
		demands:      &memDemands{byID: map[int64]*repository.Demand{}},
		dayIndex:     &memDayIndex{},
		defaults:     &memDefaults{},
		availability: &memAvailability{},
		schedule:     &memSchedule{},
		rules:        &memRules{},
		transfers:    &memTransfers{byID: map[string]*repository.TransferRequest{}},
		employees:    &memEmployees{byID: map[string]*repository.Employee{}},
		locations:    &memLocations{},
	}
}

func (s *memStore) repos() *Repos {
	return &Repos{
		Demands:      s.demands,
		DayIndex:     s.dayIndex,
		Defaults:     s.defaults,
		Availability: s.availability,
		Schedule:     s.schedule,
		Rules:        s.rules,
		Transfers:    s.transfers,
		Employees:    s.employees,
		Locations:    s.locations,
	}
}

func (s *memStore) factory() ReposFactory {
	return func(db repository.DB) *Repos { return s.repos() }
}

// --- demands ---

type memDemands struct {
	byID   map[int64]*repository.Demand
	nextID int64
}

func (m *memDemands) Upsert(ctx context.Context, d *repository.Demand) error {
	for _, existing := range m.byID {
		if existing.Tenant == d.Tenant && existing.ContentHash == d.ContentHash {
			existing.RawPayload = d.RawPayload
			existing.DateFrom = d.DateFrom
			existing.DateTo = d.DateTo
			existing.ScheduleGenerated = false
			existing.SolvedAt = nil
			*d = *existing
			return nil
		}
	}
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *memDemands) GetByID(ctx context.Context, tenant string, id int64) (*repository.Demand, error) {
	d, ok := m.byID[id]
	if !ok || d.Tenant != tenant {
		return nil, apperrors.NotFound("需求", fmt.Sprint(id))
	}
	cp := *d
	return &cp, nil
}

func (m *memDemands) GetByContentHash(ctx context.Context, tenant, hash string) (*repository.Demand, error) {
	for _, d := range m.byID {
		if d.Tenant == tenant && d.ContentHash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("需求", hash)
}

func (m *memDemands) ListSpanning(ctx context.Context, tenant, date string) ([]*repository.Demand, error) {
	var out []*repository.Demand
	// 新的在前
	for id := m.nextID; id >= 1; id-- {
		d, ok := m.byID[id]
		if !ok || d.Tenant != tenant {
			continue
		}
		if d.DateFrom <= date && date <= d.DateTo {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDemands) List(ctx context.Context, tenant string, filter repository.ListFilter) ([]*repository.Demand, int, error) {
	var out []*repository.Demand
	for id := int64(1); id <= m.nextID; id++ {
		if d, ok := m.byID[id]; ok && d.Tenant == tenant {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *memDemands) SetGenerated(ctx context.Context, tenant string, id int64, generated bool, solvedAt *time.Time) error {
	d, ok := m.byID[id]
	if !ok || d.Tenant != tenant {
		return apperrors.NotFound("需求", fmt.Sprint(id))
	}
	d.ScheduleGenerated = generated
	d.SolvedAt = solvedAt
	return nil
}

// --- day index ---

type memDayIndex struct {
	entries []*repository.DayIndexEntry
	nextID  int64
}

func (m *memDayIndex) Upsert(ctx context.Context, e *repository.DayIndexEntry) error {
	for _, existing := range m.entries {
		if existing.Tenant == e.Tenant && existing.Date == e.Date &&
			existing.Location == e.Location && existing.DayHash == e.DayHash {
			existing.DemandID = e.DemandID
			*e = *existing
			return nil
		}
	}
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memDayIndex) Latest(ctx context.Context, tenant, date, location string) (*repository.DayIndexEntry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Tenant == tenant && e.Date == date && e.Location == location {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memDayIndex) DeleteByDemand(ctx context.Context, tenant string, demandID int64) error {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.Tenant == tenant && e.DemandID == demandID {
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return nil
}

// --- defaults ---

type memDefaults struct {
	templates []*repository.DefaultDemand
	nextID    int64
}

func (m *memDefaults) Upsert(ctx context.Context, d *repository.DefaultDemand) error {
	for _, existing := range m.templates {
		if existing.Tenant == d.Tenant && existing.Location == d.Location && existing.Weekday == d.Weekday {
			existing.Items = d.Items
			*d = *existing
			return nil
		}
	}
	m.nextID++
	d.ID = m.nextID
	cp := *d
	m.templates = append(m.templates, &cp)
	return nil
}

func (m *memDefaults) Lookup(ctx context.Context, tenant, location string, weekday int) (*repository.DefaultDemand, error) {
	for _, wd := range []int{weekday, repository.FallbackWeekday} {
		for _, d := range m.templates {
			if d.Tenant == tenant && d.Location == location && d.Weekday == wd {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memDefaults) Week(ctx context.Context, tenant, location string) (map[int]*repository.DefaultDemand, error) {
	out := map[int]*repository.DefaultDemand{}
	for _, d := range m.templates {
		if d.Tenant == tenant && d.Location == location {
			cp := *d
			out[d.Weekday] = &cp
		}
	}
	return out, nil
}

// --- availability ---

type memAvailability struct {
	records []*repository.Availability
	nextID  int64
}

func (m *memAvailability) Upsert(ctx context.Context, a *repository.Availability) error {
	for _, existing := range m.records {
		if existing.Tenant == a.Tenant && existing.EmployeeID == a.EmployeeID && existing.Date == a.Date {
			existing.Experienced = a.Experienced
			existing.HoursMin = a.HoursMin
			existing.HoursMax = a.HoursMax
			existing.AvailableSlots = a.AvailableSlots
			existing.AssignedShift = a.AssignedShift
			*a = *existing
			return nil
		}
	}
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.records = append(m.records, &cp)
	return nil
}

func (m *memAvailability) ListRange(ctx context.Context, tenant, dateFrom, dateTo string) ([]*repository.Availability, error) {
	var out []*repository.Availability
	for _, a := range m.records {
		if a.Tenant == tenant && dateFrom <= a.Date && a.Date <= dateTo {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAvailability) ListByEmployee(ctx context.Context, tenant, employeeID string, filter repository.ListFilter) ([]*repository.Availability, error) {
	var out []*repository.Availability
	for _, a := range m.records {
		if a.Tenant == tenant && a.EmployeeID == employeeID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- schedule ---

type memSchedule struct {
	shifts []*repository.ScheduleShift
	nextID int64
}

func (m *memSchedule) BulkInsert(ctx context.Context, shifts []*repository.ScheduleShift) error {
	for _, s := range shifts {
		m.nextID++
		s.ID = m.nextID
		cp := *s
		m.shifts = append(m.shifts, &cp)
	}
	return nil
}

func (m *memSchedule) DeleteByDemand(ctx context.Context, tenant string, demandID int64) (int64, error) {
	var deleted int64
	kept := m.shifts[:0]
	for _, s := range m.shifts {
		if s.Tenant == tenant && s.DemandID == demandID {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.shifts = kept
	return deleted, nil
}

func (m *memSchedule) ListByDemand(ctx context.Context, tenant string, demandID int64) ([]*repository.ScheduleShift, error) {
	var out []*repository.ScheduleShift
	for _, s := range m.shifts {
		if s.Tenant == tenant && s.DemandID == demandID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSchedule) ListByDemandDay(ctx context.Context, tenant string, demandID int64, date string) ([]*repository.ScheduleShift, error) {
	var out []*repository.ScheduleShift
	for _, s := range m.shifts {
		if s.Tenant == tenant && s.DemandID == demandID && s.Date == date {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSchedule) ListByDay(ctx context.Context, tenant, date, location string) ([]*repository.ScheduleShift, error) {
	var out []*repository.ScheduleShift
	for _, s := range m.shifts {
		if s.Tenant == tenant && s.Date == date && (location == "" || s.Location == location) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSchedule) GetByUID(ctx context.Context, tenant, shiftUID string) (*repository.ScheduleShift, error) {
	for _, s := range m.shifts {
		if s.Tenant == tenant && s.ShiftUID == shiftUID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("班次", shiftUID)
}

func (m *memSchedule) Update(ctx context.Context, upd *repository.ScheduleShift) error {
	for i, s := range m.shifts {
		if s.Tenant == upd.Tenant && s.ID == upd.ID {
			cp := *upd
			m.shifts[i] = &cp
			return nil
		}
	}
	return apperrors.NotFound("班次", upd.ShiftUID)
}

// --- rules ---

type memRules struct {
	rules       []*repository.EventRule
	specialDays []*repository.SpecialDay
	adjustments []rules.Adjustment
	nextID      int64
}

func (m *memRules) CreateRule(ctx context.Context, rule *repository.EventRule) error {
	m.nextID++
	rule.ID = m.nextID
	cp := *rule
	m.rules = append(m.rules, &cp)
	return nil
}

func (m *memRules) GetRule(ctx context.Context, tenant string, id int64) (*repository.EventRule, error) {
	for _, r := range m.rules {
		if r.Tenant == tenant && r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("规则", fmt.Sprint(id))
}

func (m *memRules) ListRules(ctx context.Context, tenant string) ([]*repository.EventRule, error) {
	var out []*repository.EventRule
	for _, r := range m.rules {
		if r.Tenant == tenant {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRules) CreateSpecialDay(ctx context.Context, day *repository.SpecialDay) error {
	m.nextID++
	day.ID = m.nextID
	cp := *day
	m.specialDays = append(m.specialDays, &cp)
	return nil
}

func (m *memRules) ListSpecialDays(ctx context.Context, tenant string, filter repository.ListFilter) ([]*repository.SpecialDay, error) {
	var out []*repository.SpecialDay
	for _, d := range m.specialDays {
		if d.Tenant == tenant {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRules) ActiveAdjustments(ctx context.Context, tenant, dateFrom, dateTo string) ([]rules.Adjustment, error) {
	var out []rules.Adjustment
	for _, a := range m.adjustments {
		if dateFrom <= a.Date && a.Date <= dateTo {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- transfers ---

type memTransfers struct {
	byID map[string]*repository.TransferRequest
}

func (m *memTransfers) Create(ctx context.Context, req *repository.TransferRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = repository.TransferStatusPending
	req.CreatedAt = time.Now()
	cp := *req
	m.byID[req.ID] = &cp
	return nil
}

func (m *memTransfers) Get(ctx context.Context, tenant, id string) (*repository.TransferRequest, error) {
	req, ok := m.byID[id]
	if !ok || req.Tenant != tenant {
		return nil, apperrors.NotFound("换班请求", id)
	}
	cp := *req
	return &cp, nil
}

func (m *memTransfers) List(ctx context.Context, tenant string, filter repository.ListFilter) ([]*repository.TransferRequest, error) {
	var out []*repository.TransferRequest
	for _, req := range m.byID {
		if req.Tenant != tenant {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTransfers) Moderate(ctx context.Context, tenant, id, status, managerNote, approvedBy string, approvedAt time.Time) error {
	req, ok := m.byID[id]
	if !ok || req.Tenant != tenant {
		return apperrors.NotFound("换班请求", id)
	}
	if req.Status != repository.TransferStatusPending {
		return apperrors.ConflictState("换班请求", "已被处理")
	}
	req.Status = status
	req.ManagerNote = managerNote
	req.ApprovedBy = approvedBy
	req.ApprovedAt = &approvedAt
	return nil
}

// --- employees ---

type memEmployees struct {
	byID map[string]*repository.Employee
}

func (m *memEmployees) Upsert(ctx context.Context, e *repository.Employee) error {
	key := e.Tenant + "\x1f" + e.EmployeeID
	if existing, ok := m.byID[key]; ok {
		if e.Name != "" {
			existing.Name = e.Name
		}
		if e.Email != "" {
			existing.Email = e.Email
		}
		existing.Experienced = e.Experienced
		*e = *existing
		return nil
	}
	cp := *e
	m.byID[key] = &cp
	return nil
}

func (m *memEmployees) Get(ctx context.Context, tenant, employeeID string) (*repository.Employee, error) {
	e, ok := m.byID[tenant+"\x1f"+employeeID]
	if !ok {
		return nil, apperrors.NotFound("员工", employeeID)
	}
	cp := *e
	return &cp, nil
}

func (m *memEmployees) List(ctx context.Context, tenant string, filter repository.ListFilter) ([]*repository.Employee, error) {
	var out []*repository.Employee
	for key, e := range m.byID {
		if strings.HasPrefix(key, tenant+"\x1f") {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- locations ---

type memLocations struct {
	names []string
}

func (m *memLocations) Ensure(ctx context.Context, tenant, name string) error {
	if name == "" {
		return nil
	}
	for _, n := range m.names {
		if n == name {
			return nil
		}
	}
	m.names = append(m.names, name)
	return nil
}

func (m *memLocations) List(ctx context.Context, tenant string) ([]*repository.Location, error) {
	var out []*repository.Location
	for i, n := range m.names {
		out = append(out, &repository.Location{ID: int64(i + 1), Tenant: tenant, Name: n})
	}
	return out, nil
}

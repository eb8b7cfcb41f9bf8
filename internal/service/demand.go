package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/paiban/banbiao/internal/metrics"
	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
)

// DemandService 需求与模板服务
type DemandService struct {
	db    TxRunner
	base  *Repos
	repos ReposFactory
}

// NewDemandService 创建需求服务
func NewDemandService(db TxRunner, base *Repos, factory ReposFactory) *DemandService {
	if factory == nil {
		factory = NewRepos
	}
	return &DemandService{db: db, base: base, repos: factory}
}

// DayDemand 单日需求视图
type DayDemand struct {
	Date        string               `json:"date"`
	Location    string               `json:"location"`
	Items       []canon.TemplateItem `json:"items"`
	ContentHash string               `json:"content_hash,omitempty"`
	DemandID    int64                `json:"demand_id,omitempty"`
	Inherited   bool                 `json:"inherited,omitempty"`
}

// SaveDay 保存单日需求
// 条目为空时回退到当天星期的默认模板；保存会清除旧排班并重建日索引。
func (s *DemandService) SaveDay(ctx context.Context, id *tenant.Identity, date, location string, items []canon.TemplateItem) (*repository.Demand, []canon.DayItem, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, nil, err
	}

	if len(items) == 0 {
		items, err = s.defaultItems(ctx, id.TenantID, location, Weekday(day))
		if err != nil {
			return nil, nil, err
		}
	}

	dayItems := canon.CanonicalizeDay(items, date, location)
	if len(dayItems) == 0 {
		return nil, nil, apperrors.InvalidInput("items", "没有有效的需求条目，且该日无默认模板")
	}

	demand, err := s.persist(ctx, id.TenantID, location, dayItems, date, date)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordDemandSave("day")
	return demand, dayItems, nil
}

// SaveRange 保存日期范围需求
// 整个范围的规范条目串接后计算一个内容哈希，对应一条需求。
// 范围内未显式给出条目的日期回退默认模板，没有模板的日期跳过。
func (s *DemandService) SaveRange(ctx context.Context, id *tenant.Identity, dateFrom, dateTo, location string, items []canon.DayItem) (*repository.Demand, []canon.DayItem, error) {
	from, to, err := ValidateRange(dateFrom, dateTo)
	if err != nil {
		return nil, nil, err
	}

	provided := canon.GroupByDayLocation(items)
	var all []canon.DayItem
	for _, date := range DaysBetween(from, to) {
		key := canon.DayLocation{Date: date, Location: location}
		if group, ok := provided[key]; ok {
			all = append(all, canon.CanonicalizeDay(canon.Strip(group), date, location)...)
			continue
		}
		day, _ := ParseDate(date)
		tmpl, err := s.defaultItems(ctx, id.TenantID, location, Weekday(day))
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				continue
			}
			return nil, nil, err
		}
		all = append(all, canon.CanonicalizeDay(tmpl, date, location)...)
	}
	if len(all) == 0 {
		return nil, nil, apperrors.InvalidInput("items", "范围内没有任何需求条目")
	}

	demand, err := s.persist(ctx, id.TenantID, location, all, dateFrom, dateTo)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordDemandSave("range")
	return demand, all, nil
}

// persist 一个事务内落库：需求、旧排班清理、日索引重建
func (s *DemandService) persist(ctx context.Context, tenantID, location string, items []canon.DayItem, dateFrom, dateTo string) (*repository.Demand, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化需求载荷失败")
	}

	demand := &repository.Demand{
		Tenant:      tenantID,
		ContentHash: canon.ContentHash(items),
		RawPayload:  payload,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
	}

	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)

		if err := r.Locations.Ensure(ctx, tenantID, location); err != nil {
			return err
		}
		if err := r.Demands.Upsert(ctx, demand); err != nil {
			return err
		}
		if _, err := r.Schedule.DeleteByDemand(ctx, tenantID, demand.ID); err != nil {
			return err
		}
		if err := r.DayIndex.DeleteByDemand(ctx, tenantID, demand.ID); err != nil {
			return err
		}
		for key, group := range canon.GroupByDayLocation(items) {
			entry := &repository.DayIndexEntry{
				Tenant:   tenantID,
				Date:     key.Date,
				Location: key.Location,
				DayHash:  canon.DayHash(key.Date, key.Location, group),
				DemandID: demand.ID,
			}
			if err := r.DayIndex.Upsert(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("tenant", tenantID).
		Int64("demand_id", demand.ID).
		Str("content_hash", demand.ContentHash).
		Str("date_from", dateFrom).
		Str("date_to", dateTo).
		Msg("需求已保存")
	return demand, nil
}

// GetDay 读取单日需求
// 优先走日索引；缺失时懒回填；都没有则回退默认模板（标记 inherited）。
func (s *DemandService) GetDay(ctx context.Context, id *tenant.Identity, date, location string) (*DayDemand, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	items, demand, err := s.lookupDay(ctx, id.TenantID, date, location)
	if err != nil {
		return nil, err
	}
	if demand != nil {
		return &DayDemand{
			Date:        date,
			Location:    location,
			Items:       canon.Strip(items),
			ContentHash: demand.ContentHash,
			DemandID:    demand.ID,
		}, nil
	}

	tmpl, err := s.defaultItems(ctx, id.TenantID, location, Weekday(day))
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return &DayDemand{Date: date, Location: location, Items: []canon.TemplateItem{}}, nil
		}
		return nil, err
	}
	return &DayDemand{
		Date:      date,
		Location:  location,
		Items:     canon.CanonicalizeTemplate(tmpl),
		Inherited: true,
	}, nil
}

// lookupDay 通过日索引定位某天的规范条目，缺索引时懒回填
func (s *DemandService) lookupDay(ctx context.Context, tenantID, date, location string) ([]canon.DayItem, *repository.Demand, error) {
	entry, err := s.base.DayIndex.Latest(ctx, tenantID, date, location)
	if err == nil {
		demand, err := s.base.Demands.GetByID(ctx, tenantID, entry.DemandID)
		if err != nil {
			return nil, nil, err
		}
		items, err := dayItemsOf(demand, date, location)
		if err != nil {
			return nil, nil, err
		}
		return items, demand, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}

	// 懒回填：扫描覆盖该日期的需求，找到含该 (date, location) 的最新载荷
	demands, err := s.base.Demands.ListSpanning(ctx, tenantID, date)
	if err != nil {
		return nil, nil, err
	}
	for _, demand := range demands {
		items, err := dayItemsOf(demand, date, location)
		if err != nil {
			logger.Warn().Err(err).Int64("demand_id", demand.ID).Msg("需求载荷解析失败，跳过")
			continue
		}
		if len(items) == 0 {
			continue
		}
		entry := &repository.DayIndexEntry{
			Tenant:   tenantID,
			Date:     date,
			Location: location,
			DayHash:  canon.DayHash(date, location, items),
			DemandID: demand.ID,
		}
		if err := s.base.DayIndex.Upsert(ctx, entry); err != nil {
			return nil, nil, err
		}
		return items, demand, nil
	}
	return nil, nil, nil
}

// dayItemsOf 从需求载荷中取出某 (date, location) 的规范条目
func dayItemsOf(demand *repository.Demand, date, location string) ([]canon.DayItem, error) {
	var payload []canon.DayItem
	if err := json.Unmarshal(demand.RawPayload, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "需求载荷格式错误")
	}
	groups := canon.GroupByDayLocation(payload)
	group := groups[canon.DayLocation{Date: date, Location: location}]
	return canon.CanonicalizeDay(canon.Strip(group), date, location), nil
}

// defaultItems 查默认模板：先精确星期，再回退
func (s *DemandService) defaultItems(ctx context.Context, tenantID, location string, weekday int) ([]canon.TemplateItem, error) {
	d, err := s.base.Defaults.Lookup(ctx, tenantID, location, weekday)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("默认模板", location)
		}
		return nil, err
	}
	var items []canon.TemplateItem
	if err := json.Unmarshal(d.Items, &items); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "默认模板格式错误")
	}
	return items, nil
}

// buildDefault 校验模板载荷并构造待落库的行
func buildDefault(tenantID, location string, weekday *int, items []canon.TemplateItem) (*repository.DefaultDemand, error) {
	wd := repository.FallbackWeekday
	if weekday != nil {
		if *weekday < 0 || *weekday > 6 {
			return nil, apperrors.InvalidInput("weekday", "必须在 0..6 之间")
		}
		wd = *weekday
	}
	cleaned := canon.CanonicalizeTemplate(items)
	payload, err := json.Marshal(cleaned)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化模板失败")
	}
	return &repository.DefaultDemand{
		Tenant:   tenantID,
		Location: location,
		Weekday:  wd,
		Items:    payload,
	}, nil
}

// SaveDefault 保存某星期的默认模板，weekday 为 nil 表示回退模板
func (s *DemandService) SaveDefault(ctx context.Context, id *tenant.Identity, location string, weekday *int, items []canon.TemplateItem) (*repository.DefaultDemand, error) {
	d, err := buildDefault(id.TenantID, location, weekday, items)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		if err := r.Locations.Ensure(ctx, id.TenantID, location); err != nil {
			return err
		}
		return r.Defaults.Upsert(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordDemandSave("default")
	return d, nil
}

// DefaultTemplateInput 批量模板保存的一项
type DefaultTemplateInput struct {
	Location string               `json:"location,omitempty"`
	Weekday  *int                 `json:"weekday,omitempty"`
	Items    []canon.TemplateItem `json:"items"`
}

// SaveDefaults 批量保存默认模板
// 先整体校验再在一个事务内落库，任何一项失败都不会留下部分写入。
func (s *DemandService) SaveDefaults(ctx context.Context, id *tenant.Identity, entries []DefaultTemplateInput) ([]*repository.DefaultDemand, error) {
	if len(entries) == 0 {
		return nil, apperrors.InvalidInput("entries", "载荷为空")
	}
	rows := make([]*repository.DefaultDemand, 0, len(entries))
	for _, e := range entries {
		d, err := buildDefault(id.TenantID, e.Location, e.Weekday, e.Items)
		if err != nil {
			return nil, err
		}
		rows = append(rows, d)
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		r := s.repos(tx)
		for _, d := range rows {
			if err := r.Locations.Ensure(ctx, id.TenantID, d.Location); err != nil {
				return err
			}
			if err := r.Defaults.Upsert(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for range rows {
		metrics.RecordDemandSave("default")
	}
	return rows, nil
}

// DefaultView 默认模板读取视图
type DefaultView struct {
	Weekday   int                  `json:"weekday"`
	Items     []canon.TemplateItem `json:"items"`
	Inherited bool                 `json:"inherited,omitempty"`
}

// GetDefault 读取默认模板
// weekday 给定时返回该星期生效的模板（可能回退，标记 inherited）；
// 省略时返回全部已存模板，回退模板排在最前。
func (s *DemandService) GetDefault(ctx context.Context, id *tenant.Identity, location string, weekday *int) ([]DefaultView, error) {
	decode := func(d *repository.DefaultDemand) ([]canon.TemplateItem, error) {
		var items []canon.TemplateItem
		if err := json.Unmarshal(d.Items, &items); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "默认模板格式错误")
		}
		if items == nil {
			items = []canon.TemplateItem{}
		}
		return items, nil
	}

	if weekday != nil {
		if *weekday < 0 || *weekday > 6 {
			return nil, apperrors.InvalidInput("weekday", "必须在 0..6 之间")
		}
		d, err := s.base.Defaults.Lookup(ctx, id.TenantID, location, *weekday)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperrors.NotFound("默认模板", location)
			}
			return nil, err
		}
		items, err := decode(d)
		if err != nil {
			return nil, err
		}
		return []DefaultView{{
			Weekday:   *weekday,
			Items:     items,
			Inherited: d.Weekday != *weekday,
		}}, nil
	}

	all, err := s.base.Defaults.Week(ctx, id.TenantID, location)
	if err != nil {
		return nil, err
	}
	out := make([]DefaultView, 0, len(all))
	for wd := repository.FallbackWeekday; wd < 7; wd++ {
		d, ok := all[wd]
		if !ok {
			continue
		}
		items, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, DefaultView{Weekday: wd, Items: items})
	}
	return out, nil
}

// WeekEntry 默认模板周视图的一项
type WeekEntry struct {
	Weekday   int                  `json:"weekday"`
	Items     []canon.TemplateItem `json:"items"`
	Inherited bool                 `json:"inherited"`
}

// DefaultWeek 返回7天的模板视图，缺精确模板的星期回退并标记 inherited
func (s *DemandService) DefaultWeek(ctx context.Context, id *tenant.Identity, location string) ([]WeekEntry, error) {
	all, err := s.base.Defaults.Week(ctx, id.TenantID, location)
	if err != nil {
		return nil, err
	}

	decode := func(d *repository.DefaultDemand) []canon.TemplateItem {
		var items []canon.TemplateItem
		if d != nil {
			if err := json.Unmarshal(d.Items, &items); err != nil {
				logger.Warn().Err(err).Int("weekday", d.Weekday).Msg("默认模板格式错误")
			}
		}
		if items == nil {
			items = []canon.TemplateItem{}
		}
		return items
	}

	fallback := decode(all[repository.FallbackWeekday])
	out := make([]WeekEntry, 0, 7)
	for wd := 0; wd < 7; wd++ {
		if d, ok := all[wd]; ok {
			out = append(out, WeekEntry{Weekday: wd, Items: decode(d)})
			continue
		}
		out = append(out, WeekEntry{Weekday: wd, Items: fallback, Inherited: true})
	}
	return out, nil
}

// GetDemand 按ID读取需求
func (s *DemandService) GetDemand(ctx context.Context, id *tenant.Identity, demandID int64) (*repository.Demand, error) {
	return s.base.Demands.GetByID(ctx, id.TenantID, demandID)
}

// ListDemands 分页列出需求
func (s *DemandService) ListDemands(ctx context.Context, id *tenant.Identity, filter repository.ListFilter) ([]*repository.Demand, int, error) {
	return s.base.Demands.List(ctx, id.TenantID, filter)
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/rules"
)

// RuleRepositoryInterface 规则仓储接口
type RuleRepositoryInterface interface {
	CreateRule(ctx context.Context, rule *EventRule) error
	GetRule(ctx context.Context, tenant string, id int64) (*EventRule, error)
	ListRules(ctx context.Context, tenant string) ([]*EventRule, error)
	CreateSpecialDay(ctx context.Context, day *SpecialDay) error
	ListSpecialDays(ctx context.Context, tenant string, filter ListFilter) ([]*SpecialDay, error)
	ActiveAdjustments(ctx context.Context, tenant, dateFrom, dateTo string) ([]rules.Adjustment, error)
}

// RuleRepository 规则与特殊日仓储
type RuleRepository struct {
	db DB
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(db DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, tenant, name, mode, value, needs_experienced_default, min_demand, max_demand, active, created_at`
const specialDayColumns = `id, tenant, date, location, rule_id, active, note, created_at`

// CreateRule 创建规则
func (r *RuleRepository) CreateRule(ctx context.Context, rule *EventRule) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO event_rules (tenant, name, mode, value, needs_experienced_default, min_demand, max_demand, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rule.Tenant, rule.Name, rule.Mode, rule.Value, rule.NeedsExperiencedDefault,
		rule.MinDemand, rule.MaxDemand, rule.Active,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return apperrors.Database("创建规则", err)
	}
	return nil
}

// GetRule 按ID获取规则
func (r *RuleRepository) GetRule(ctx context.Context, tenant string, id int64) (*EventRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM event_rules WHERE tenant = $1 AND id = $2`, tenant, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("规则", itoa(id))
	}
	if err != nil {
		return nil, apperrors.Database("查询规则", err)
	}
	return rule, nil
}

// ListRules 列出全部规则
func (r *RuleRepository) ListRules(ctx context.Context, tenant string) ([]*EventRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM event_rules WHERE tenant = $1 ORDER BY created_at, id`, tenant)
	if err != nil {
		return nil, apperrors.Database("列出规则", err)
	}
	defer rows.Close()

	var out []*EventRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperrors.Database("列出规则", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// CreateSpecialDay 创建特殊日
func (r *RuleRepository) CreateSpecialDay(ctx context.Context, day *SpecialDay) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO special_days (tenant, date, location, rule_id, active, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		day.Tenant, day.Date, day.Location, day.RuleID, day.Active, day.Note,
	).Scan(&day.ID, &day.CreatedAt)
	if err != nil {
		return apperrors.Database("创建特殊日", err)
	}
	return nil
}

// ListSpecialDays 列出特殊日
func (r *RuleRepository) ListSpecialDays(ctx context.Context, tenant string, filter ListFilter) ([]*SpecialDay, error) {
	query := `SELECT ` + specialDayColumns + ` FROM special_days WHERE tenant = $1`
	args := []interface{}{tenant}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		query += ` AND date >= $2`
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		query += ` AND date <= $` + itoa(int64(len(args)))
	}
	query += ` ORDER BY date, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Database("列出特殊日", err)
	}
	defer rows.Close()

	var out []*SpecialDay
	for rows.Next() {
		d := &SpecialDay{}
		err := rows.Scan(&d.ID, &d.Tenant, &d.Date, &d.Location, &d.RuleID, &d.Active, &d.Note, &d.CreatedAt)
		if err != nil {
			return nil, apperrors.Database("列出特殊日", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ActiveAdjustments 连接特殊日与规则，返回日期范围内双方均激活的调整项
// 按特殊日创建顺序返回，规则引擎依赖该顺序。
func (r *RuleRepository) ActiveAdjustments(ctx context.Context, tenant, dateFrom, dateTo string) ([]rules.Adjustment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sd.date, sd.location, er.mode, er.value, er.needs_experienced_default,
		       er.min_demand, er.max_demand
		FROM special_days sd
		JOIN event_rules er ON er.id = sd.rule_id AND er.tenant = sd.tenant
		WHERE sd.tenant = $1 AND sd.date >= $2 AND sd.date <= $3
		  AND sd.active AND er.active
		ORDER BY sd.created_at, sd.id`, tenant, dateFrom, dateTo)
	if err != nil {
		return nil, apperrors.Database("查询生效规则", err)
	}
	defer rows.Close()

	var out []rules.Adjustment
	for rows.Next() {
		var a rules.Adjustment
		var mode string
		err := rows.Scan(&a.Date, &a.Location, &mode, &a.Value,
			&a.NeedsExperiencedDefault, &a.MinDemand, &a.MaxDemand)
		if err != nil {
			return nil, apperrors.Database("查询生效规则", err)
		}
		a.Mode = rules.Mode(mode)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanRule(s Scanner) (*EventRule, error) {
	rule := &EventRule{}
	err := s.Scan(&rule.ID, &rule.Tenant, &rule.Name, &rule.Mode, &rule.Value,
		&rule.NeedsExperiencedDefault, &rule.MinDemand, &rule.MaxDemand,
		&rule.Active, &rule.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

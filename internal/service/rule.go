package service

import (
	"context"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
	"github.com/paiban/banbiao/pkg/rules"
)

// RuleService 事件规则与特殊日服务
type RuleService struct {
	base *Repos
}

// NewRuleService 创建规则服务
func NewRuleService(base *Repos) *RuleService {
	return &RuleService{base: base}
}

// CreateRule 创建事件规则
func (s *RuleService) CreateRule(ctx context.Context, id *tenant.Identity, rule *repository.EventRule) (*repository.EventRule, error) {
	if !id.Role.CanModerate() {
		return nil, apperrors.Forbidden("需要管理员角色")
	}
	if rule.Name == "" {
		return nil, apperrors.InvalidInput("name", "不能为空")
	}
	switch rules.Mode(rule.Mode) {
	case rules.ModeOverride:
		if rule.Value < 0 {
			return nil, apperrors.InvalidInput("value", "override 模式不能为负")
		}
	case rules.ModeMultiplier:
		if rule.Value < 0 {
			return nil, apperrors.InvalidInput("value", "multiplier 模式不能为负")
		}
	default:
		return nil, apperrors.InvalidInput("mode", "只支持 override 或 multiplier")
	}
	if rule.MinDemand != nil && *rule.MinDemand < 0 {
		return nil, apperrors.InvalidInput("min_demand", "不能为负")
	}
	if rule.MaxDemand != nil && *rule.MaxDemand < 0 {
		return nil, apperrors.InvalidInput("max_demand", "不能为负")
	}
	if rule.MinDemand != nil && rule.MaxDemand != nil && *rule.MaxDemand < *rule.MinDemand {
		return nil, apperrors.InvalidInput("max_demand", "小于 min_demand")
	}

	rule.Tenant = id.TenantID
	if err := s.base.Rules.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	logger.Info().
		Str("tenant", id.TenantID).
		Int64("rule_id", rule.ID).
		Str("mode", rule.Mode).
		Msg("事件规则已创建")
	return rule, nil
}

// GetRule 读取事件规则
func (s *RuleService) GetRule(ctx context.Context, id *tenant.Identity, ruleID int64) (*repository.EventRule, error) {
	return s.base.Rules.GetRule(ctx, id.TenantID, ruleID)
}

// ListRules 列出事件规则
func (s *RuleService) ListRules(ctx context.Context, id *tenant.Identity) ([]*repository.EventRule, error) {
	return s.base.Rules.ListRules(ctx, id.TenantID)
}

// CreateSpecialDay 把某天绑定到规则
// location 为空表示对全部地点生效。
func (s *RuleService) CreateSpecialDay(ctx context.Context, id *tenant.Identity, day *repository.SpecialDay) (*repository.SpecialDay, error) {
	if !id.Role.CanModerate() {
		return nil, apperrors.Forbidden("需要管理员角色")
	}
	if _, err := ParseDate(day.Date); err != nil {
		return nil, err
	}
	if _, err := s.base.Rules.GetRule(ctx, id.TenantID, day.RuleID); err != nil {
		return nil, err
	}

	day.Tenant = id.TenantID
	if err := s.base.Rules.CreateSpecialDay(ctx, day); err != nil {
		return nil, err
	}
	logger.Info().
		Str("tenant", id.TenantID).
		Str("date", day.Date).
		Int64("rule_id", day.RuleID).
		Msg("特殊日已登记")
	return day, nil
}

// ListSpecialDays 列出特殊日
func (s *RuleService) ListSpecialDays(ctx context.Context, id *tenant.Identity, filter repository.ListFilter) ([]*repository.SpecialDay, error) {
	return s.base.Rules.ListSpecialDays(ctx, id.TenantID, filter)
}

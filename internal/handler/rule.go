package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/service"
)

// RuleHandler 事件规则与特殊日处理器
type RuleHandler struct {
	rules *service.RuleService
}

// NewRuleHandler 创建规则处理器
func NewRuleHandler(rules *service.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// CreateRule 创建事件规则
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule repository.EventRule
	if err := decodeJSON(r, &rule); err != nil {
		respondError(w, err)
		return
	}
	rule.Active = true

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	created, err := h.rules.CreateRule(r.Context(), id, &rule)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetRule 读取事件规则
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := parseID(chi.URLParam(r, "rule_id"))
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	rule, err := h.rules.GetRule(r.Context(), id, ruleID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// ListRules 列出事件规则
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	rules, err := h.rules.ListRules(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// CreateSpecialDay 登记特殊日
func (h *RuleHandler) CreateSpecialDay(w http.ResponseWriter, r *http.Request) {
	var day repository.SpecialDay
	if err := decodeJSON(r, &day); err != nil {
		respondError(w, err)
		return
	}
	day.Active = true

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	created, err := h.rules.CreateSpecialDay(r.Context(), id, &day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListSpecialDays 列出特殊日
func (h *RuleHandler) ListSpecialDays(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	days, err := h.rules.ListSpecialDays(r.Context(), id, parseListFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"special_days": days})
}

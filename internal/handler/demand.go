package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/banbiao/internal/service"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// DemandHandler 需求与默认模板处理器
type DemandHandler struct {
	demands *service.DemandService
}

// NewDemandHandler 创建需求处理器
func NewDemandHandler(demands *service.DemandService) *DemandHandler {
	return &DemandHandler{demands: demands}
}

// DayDemandRequest 单日需求请求
type DayDemandRequest struct {
	Date     string               `json:"date"`
	Location string               `json:"location,omitempty"`
	Items    []canon.TemplateItem `json:"items,omitempty"`
}

// SaveDay 保存单日需求
// items 省略时回退到当天星期的默认模板。
func (h *DemandHandler) SaveDay(w http.ResponseWriter, r *http.Request) {
	var req DayDemandRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Date == "" {
		respondError(w, apperrors.InvalidInput("date", "不能为空"))
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	demand, items, err := h.demands.SaveDay(r.Context(), id, req.Date, req.Location, req.Items)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"demand_id":    demand.ID,
		"content_hash": demand.ContentHash,
		"date":         req.Date,
		"location":     req.Location,
		"items":        canon.Strip(items),
	})
}

// GetDay 读取单日需求
func (h *DemandHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, apperrors.InvalidInput("date", "不能为空"))
		return
	}
	location := r.URL.Query().Get("location")

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	day, err := h.demands.GetDay(r.Context(), id, date, location)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, day)
}

// DefaultRequest 默认模板请求
type DefaultRequest struct {
	Location string               `json:"location,omitempty"`
	Weekday  *int                 `json:"weekday,omitempty"`
	Items    []canon.TemplateItem `json:"items"`
}

// SaveDefault 保存默认模板
// weekday 省略时写入兜底模板，对没有专属模板的星期生效。
func (h *DemandHandler) SaveDefault(w http.ResponseWriter, r *http.Request) {
	var req DefaultRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	saved, err := h.demands.SaveDefault(r.Context(), id, req.Location, req.Weekday, req.Items)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// SaveDefaultBulk 批量保存默认模板，整批在一个事务内完成
func (h *DemandHandler) SaveDefaultBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []DefaultRequest
	if err := decodeJSON(r, &reqs); err != nil {
		respondError(w, err)
		return
	}
	if len(reqs) == 0 {
		respondError(w, apperrors.InvalidInput("body", "载荷为空"))
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	entries := make([]service.DefaultTemplateInput, 0, len(reqs))
	for _, req := range reqs {
		entries = append(entries, service.DefaultTemplateInput{
			Location: req.Location,
			Weekday:  req.Weekday,
			Items:    req.Items,
		})
	}
	saved, err := h.demands.SaveDefaults(r.Context(), id, entries)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"saved": len(saved), "templates": saved})
}

// GetDefault 读取默认模板
// weekday 参数可选：给定时返回该星期生效的模板，省略时返回全部已存模板。
func (h *DemandHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	var weekday *int
	if raw := r.URL.Query().Get("weekday"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, apperrors.InvalidInput("weekday", "必须是整数"))
			return
		}
		weekday = &v
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	defaults, err := h.demands.GetDefault(r.Context(), id, r.URL.Query().Get("location"), weekday)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"defaults": defaults})
}

// DefaultWeek 读取整周默认模板
func (h *DemandHandler) DefaultWeek(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	week, err := h.demands.DefaultWeek(r.Context(), id, r.URL.Query().Get("location"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"week": week})
}

// Get 按ID读取需求
func (h *DemandHandler) Get(w http.ResponseWriter, r *http.Request) {
	demandID, err := parseID(chi.URLParam(r, "demand_id"))
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	demand, err := h.demands.GetDemand(r.Context(), id, demandID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, demand)
}

// List 分页列出需求
func (h *DemandHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	filter := parseListFilter(r)
	demands, total, err := h.demands.ListDemands(r.Context(), id, filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"demands": demands,
		"total":   total,
		"offset":  filter.Offset,
		"limit":   filter.Limit,
	})
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/banbiao/internal/service"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// ScheduleHandler 排班生成与班次处理器
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// GenerateDayRequest 单日排班生成请求
type GenerateDayRequest struct {
	Date     string               `json:"date"`
	Location string               `json:"location,omitempty"`
	Persist  *bool                `json:"persist,omitempty"`
	Force    bool                 `json:"force,omitempty"`
	Items    []canon.TemplateItem `json:"items,omitempty"`
}

// GenerateDay 生成单日排班
func (h *ScheduleHandler) GenerateDay(w http.ResponseWriter, r *http.Request) {
	var req GenerateDayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	ve := &apperrors.ValidationErrors{}
	if req.Date == "" {
		ve.Add("date", "不能为空")
	}
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	persist := req.Persist == nil || *req.Persist
	result, err := h.schedules.GenerateDay(r.Context(), id, req.Date, req.Location, req.Items, persist, req.Force)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GenerateRangeRequest 日期范围排班生成请求
type GenerateRangeRequest struct {
	DateFrom string          `json:"date_from"`
	DateTo   string          `json:"date_to"`
	Location string          `json:"location,omitempty"`
	Persist  *bool           `json:"persist,omitempty"`
	Force    bool            `json:"force,omitempty"`
	Items    []canon.DayItem `json:"items,omitempty"`
}

// GenerateRange 生成日期范围排班
func (h *ScheduleHandler) GenerateRange(w http.ResponseWriter, r *http.Request) {
	var req GenerateRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	ve := &apperrors.ValidationErrors{}
	if req.DateFrom == "" {
		ve.Add("date_from", "不能为空")
	}
	if req.DateTo == "" {
		ve.Add("date_to", "不能为空")
	}
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	persist := req.Persist == nil || *req.Persist
	result, err := h.schedules.GenerateRange(r.Context(), id, req.DateFrom, req.DateTo, req.Location, req.Items, persist, req.Force)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Get 读取某需求的排班
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.schedules.GetSchedule(r.Context(), id, demandID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetDay 读取某需求指定日期的班次
func (h *ScheduleHandler) GetDay(w http.ResponseWriter, r *http.Request) {
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
	shifts, err := h.schedules.GetScheduleDay(r.Context(), id, demandID, chi.URLParam(r, "day"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"shifts": shifts})
}

// DaySchedule 读取某天的排班，缺排班时惰性生成
func (h *ScheduleHandler) DaySchedule(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	shifts, err := h.schedules.GetDaySchedule(r.Context(), id, chi.URLParam(r, "day"), r.URL.Query().Get("location"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"shifts": shifts})
}

// GetShift 按UID读取班次
func (h *ScheduleHandler) GetShift(w http.ResponseWriter, r *http.Request) {
	shiftUID := chi.URLParam(r, "shift_uid")
	if shiftUID == "" {
		respondError(w, apperrors.InvalidInput("shift_uid", "不能为空"))
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	shift, err := h.schedules.GetShift(r.Context(), id, shiftUID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shift)
}

// UpdateShift 手工编辑班次
func (h *ScheduleHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	shiftUID := chi.URLParam(r, "shift_uid")
	if shiftUID == "" {
		respondError(w, apperrors.InvalidInput("shift_uid", "不能为空"))
		return
	}
	var patch service.ShiftPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, err)
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	shift, err := h.schedules.UpdateShift(r.Context(), id, shiftUID, &patch)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shift)
}

// ApproveShiftRequest 班次审批请求
type ApproveShiftRequest struct {
	Note string `json:"note,omitempty"`
}

// ApproveShift 审批班次
func (h *ScheduleHandler) ApproveShift(w http.ResponseWriter, r *http.Request) {
	shiftUID := chi.URLParam(r, "shift_uid")
	if shiftUID == "" {
		respondError(w, apperrors.InvalidInput("shift_uid", "不能为空"))
		return
	}
	var req ApproveShiftRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	shift, err := h.schedules.ApproveShift(r.Context(), id, shiftUID, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shift)
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/paiban/banbiao/internal/service"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// AvailabilityHandler 员工可用性处理器
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler 创建可用性处理器
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// SaveBulk 批量保存可用性
// 载荷兼容单个员工对象或员工数组。
func (h *AvailabilityHandler) SaveBulk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "读取请求失败"))
		return
	}

	var entries []service.EmployeeAvailability
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			respondError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败"))
			return
		}
	} else {
		var single service.EmployeeAvailability
		if err := json.Unmarshal(trimmed, &single); err != nil {
			respondError(w, apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败"))
			return
		}
		entries = []service.EmployeeAvailability{single}
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	saved, err := h.availability.SaveBulk(r.Context(), id, entries)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"saved_days": saved,
		"employees":  len(entries),
	})
}

// List 列出日期范围内的可用性
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	q := r.URL.Query()
	if employeeID := q.Get("employee_id"); employeeID != "" {
		records, err := h.availability.ListByEmployee(r.Context(), id, employeeID, parseListFilter(r))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"availability": records})
		return
	}

	dateFrom, dateTo := q.Get("date_from"), q.Get("date_to")
	if dateFrom == "" || dateTo == "" {
		respondError(w, apperrors.InvalidInput("date_from", "date_from 与 date_to 不能为空"))
		return
	}
	records, err := h.availability.ListRange(r.Context(), id, dateFrom, dateTo)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"availability": records})
}

// ListEmployees 列出员工名录
func (h *AvailabilityHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	employees, err := h.availability.ListEmployees(r.Context(), id, parseListFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"employees": employees})
}

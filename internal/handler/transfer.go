package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/banbiao/internal/service"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

// TransferHandler 换班请求处理器
type TransferHandler struct {
	transfers *service.TransferService
}

// NewTransferHandler 创建换班处理器
func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Create 发起换班请求
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	created, err := h.transfers.Create(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ModerateRequest 审批载荷
type ModerateRequest struct {
	ManagerNote string `json:"manager_note,omitempty"`
}

// Approve 审批通过换班请求
func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, true)
}

// Reject 驳回换班请求
func (h *TransferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, false)
}

func (h *TransferHandler) moderate(w http.ResponseWriter, r *http.Request, approve bool) {
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		respondError(w, apperrors.InvalidInput("request_id", "不能为空"))
		return
	}
	var req ModerateRequest
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
	moderated, err := func() (interface{}, error) {
		if approve {
			return h.transfers.Approve(r.Context(), id, requestID, req.ManagerNote)
		}
		return h.transfers.Reject(r.Context(), id, requestID, req.ManagerNote)
	}()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, moderated)
}

// Get 读取换班请求
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		respondError(w, apperrors.InvalidInput("request_id", "不能为空"))
		return
	}

	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	req, err := h.transfers.Get(r.Context(), id, requestID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// List 列出换班请求
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := identityFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}
	requests, err := h.transfers.List(r.Context(), id, parseListFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	apperrors "github.com/paiban/banbiao/pkg/errors"
	"github.com/paiban/banbiao/pkg/logger"
)

// identityFrom 从请求上下文取租户身份
func identityFrom(r *http.Request) (*tenant.Identity, error) {
	id, err := tenant.MustFromContext(r.Context())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnauthorized, "缺少租户身份")
	}
	return id, nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		logger.Error().Err(err).Msg("未分类的处理器错误")
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "内部错误")
	}
	respondJSON(w, apperrors.GetHTTPStatus(appErr), map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})
}

// decodeJSON 解析请求体
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// parseListFilter 从查询参数构造列表过滤器
func parseListFilter(r *http.Request) repository.ListFilter {
	q := r.URL.Query()
	filter := repository.ListFilter{
		StartDate: q.Get("date_from"),
		EndDate:   q.Get("date_to"),
		Location:  q.Get("location"),
		Status:    q.Get("status"),
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	return filter.Normalize()
}

// parseID 解析路径里的数字ID
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("id", "无效的数字ID: "+raw)
	}
	return id, nil
}

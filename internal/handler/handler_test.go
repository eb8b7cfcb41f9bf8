package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paiban/banbiao/pkg/errors"
)

func TestRespondError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, apperrors.NotFound("需求", "42"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["error"])
	assert.Equal(t, string(apperrors.CodeNotFound), body["code"])
}

func TestRespondError_WrapsUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, errors.New("磁盘炸了"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(apperrors.CodeInternal), body["code"])
}

func TestParseListFilter(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
	}{
		{"默认分页", "", 0, 20},
		{"显式分页", "offset=40&limit=50", 40, 50},
		{"超限截断", "limit=9999", 0, 20},
		{"负偏移归零", "offset=-5", 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/demands?"+tt.query, nil)
			filter := parseListFilter(r)
			assert.Equal(t, tt.wantOffset, filter.Offset)
			assert.Equal(t, tt.wantLimit, filter.Limit)
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/demands?date_from=2026-03-02&date_to=2026-03-08&location=%E9%97%A8%E5%BA%97A&status=pending", nil)
	filter := parseListFilter(r)
	assert.Equal(t, "2026-03-02", filter.StartDate)
	assert.Equal(t, "2026-03-08", filter.EndDate)
	assert.Equal(t, "门店A", filter.Location)
	assert.Equal(t, "pending", filter.Status)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

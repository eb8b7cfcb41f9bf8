package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	"github.com/paiban/banbiao/pkg/canon"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

func newAvailabilityService(store *memStore) *AvailabilityService {
	return NewAvailabilityService(passthroughTx{}, store.repos(), store.factory())
}

func TestSaveBulk_NormalizesAndUpsertsDirectory(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)
	id := testIdentity(tenant.RoleManager)

	saved, err := svc.SaveBulk(context.Background(), id, []EmployeeAvailability{
		{
			EmployeeID:   "e1",
			EmployeeName: "张三",
			Email:        "zhangsan@example.com",
			Experienced:  true,
			HoursMin:     10,
			HoursMax:     30,
			Availabilities: []DayAvailability{
				{Date: "2026-03-02", AvailableSlots: json.RawMessage(`[{"start":"9","end":"17.30"}]`)},
				{Date: "2026-03-03", AvailableSlots: json.RawMessage(`{"start":"08:00","end":"12:00"}`)},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// 员工名录同步更新
	emp, err := store.employees.Get(context.Background(), "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "张三", emp.Name)
	assert.True(t, emp.Experienced)

	// 时段写法归一化后落库
	records, err := store.availability.ListRange(context.Background(), "t1", "2026-03-02", "2026-03-03")
	require.NoError(t, err)
	require.Len(t, records, 2)

	slots := canon.CoerceSlots(records[0].AvailableSlots)
	require.Len(t, slots, 1)
	assert.Equal(t, "09:00", slots[0].Start)
	assert.Equal(t, "17:30", slots[0].End)
	assert.Equal(t, 10, records[0].HoursMin)
	assert.Equal(t, 30, records[0].HoursMax)
}

func TestSaveBulk_NormalizesAssignedShiftTimes(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)

	_, err := svc.SaveBulk(context.Background(), testIdentity(tenant.RoleManager), []EmployeeAvailability{
		{
			EmployeeID: "e1",
			Availabilities: []DayAvailability{
				{
					Date:           "2026-03-02",
					AvailableSlots: json.RawMessage(`[]`),
					AssignedShift:  json.RawMessage(`{"date":"2026-03-02","location":"门店A","start":"8","end":"12.00","confirmed":true}`),
				},
			},
		},
	})
	require.NoError(t, err)

	records, err := store.availability.ListRange(context.Background(), "t1", "2026-03-02", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, records, 1)

	var pre map[string]any
	require.NoError(t, json.Unmarshal(records[0].AssignedShift, &pre))
	assert.Equal(t, "08:00", pre["start"])
	assert.Equal(t, "12:00", pre["end"])
	assert.Equal(t, true, pre["confirmed"])
}

func TestSaveBulk_Validation(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)
	id := testIdentity(tenant.RoleManager)

	tests := []struct {
		name    string
		entries []EmployeeAvailability
	}{
		{"空载荷", nil},
		{"缺员工标识", []EmployeeAvailability{{EmployeeID: ""}}},
		{"工时上下限倒置", []EmployeeAvailability{{EmployeeID: "e1", HoursMin: 20, HoursMax: 10}}},
		{"负的工时下限", []EmployeeAvailability{{EmployeeID: "e1", HoursMin: -1}}},
		{"无效日期", []EmployeeAvailability{{
			EmployeeID:     "e1",
			Availabilities: []DayAvailability{{Date: "03/02/2026"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveBulk(context.Background(), id, tt.entries)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
		})
	}

	// 校验失败时不应有任何落库
	assert.Empty(t, store.availability.records)
	assert.Empty(t, store.employees.byID)
}

func TestSaveBulk_UnboundedHoursAccepted(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)

	// hours_max 为 0 表示不设上限，不应触发上下限校验
	saved, err := svc.SaveBulk(context.Background(), testIdentity(tenant.RoleManager), []EmployeeAvailability{
		{
			EmployeeID: "e1",
			HoursMin:   20,
			HoursMax:   0,
			Availabilities: []DayAvailability{
				{Date: "2026-03-02", AvailableSlots: json.RawMessage(`[]`)},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
}

func TestListRange_ValidatesRange(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)

	_, err := svc.ListRange(context.Background(), testIdentity(tenant.RoleEmployee), "2026-03-05", "2026-03-02")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidTimeRange))
}

func TestListByEmployee_RequiresID(t *testing.T) {
	store := newMemStore()
	svc := newAvailabilityService(store)

	_, err := svc.ListByEmployee(context.Background(), testIdentity(tenant.RoleEmployee), "", repository.ListFilter{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
}

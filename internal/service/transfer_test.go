package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/internal/tenant"
	apperrors "github.com/paiban/banbiao/pkg/errors"
)

func newTransferService(store *memStore) *TransferService {
	return NewTransferService(passthroughTx{}, store.repos(), store.factory(), nil)
}

// seedShift 直接写入一条班次
func seedShift(t *testing.T, store *memStore, uid string, assigned []string) *repository.ScheduleShift {
	t.Helper()
	shift := &repository.ScheduleShift{
		Tenant:            "t1",
		DemandID:          1,
		ShiftUID:          uid,
		Date:              "2026-03-02",
		Location:          "门店A",
		Start:             "08:00",
		End:               "12:00",
		DemandCount:       2,
		AssignedEmployees: assigned,
	}
	require.NoError(t, store.schedule.BulkInsert(context.Background(), []*repository.ScheduleShift{shift}))
	return shift
}

func employeeIdentity(userID string) *tenant.Identity {
	return &tenant.Identity{TenantID: "t1", UserID: userID, Role: tenant.RoleEmployee}
}

func TestCreate_DropRequiresMembership(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	// 指派中的员工可以发起 drop
	req, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionDrop,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.TransferStatusPending, req.Status)
	assert.Equal(t, "e1", req.RequestedBy)

	// 名单外的员工不能 drop
	_, err = svc.Create(context.Background(), employeeIdentity("e2"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionDrop,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflictState))
}

func TestCreate_ClaimRequiresNonMembership(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	// 已在名单中不能 claim
	_, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionClaim,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflictState))

	req, err := svc.Create(context.Background(), employeeIdentity("e2"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionClaim,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.TransferActionClaim, req.Action)
}

func TestCreate_Validation(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)

	_, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{Action: "drop"})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{ShiftUID: "x", Action: "swap"})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{ShiftUID: "不存在", Action: "drop"})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestApprove_DropRewritesAssignment(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1", "e3"})

	req, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID:       uid,
		Action:         repository.TransferActionDrop,
		TargetEmployee: "e2",
	})
	require.NoError(t, err)

	manager := testIdentity(tenant.RoleManager)
	approved, err := svc.Approve(context.Background(), manager, req.ID, "同意")
	require.NoError(t, err)
	assert.Equal(t, repository.TransferStatusApproved, approved.Status)
	assert.Equal(t, "u1", approved.ApprovedBy)
	assert.Equal(t, "同意", approved.ManagerNote)

	shift, err := store.schedule.GetByUID(context.Background(), "t1", uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e2"}, shift.AssignedEmployees)
	assert.True(t, shift.UserEdited)
	assert.True(t, shift.Confirmed)
	assert.Equal(t, "u1", shift.ApprovedBy)
}

func TestApprove_ClaimAddsRequester(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	req, err := svc.Create(context.Background(), employeeIdentity("e2"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionClaim,
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), testIdentity(tenant.RoleOwner), req.ID, "")
	require.NoError(t, err)

	shift, err := store.schedule.GetByUID(context.Background(), "t1", uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, shift.AssignedEmployees)
}

func TestApprove_RequiresModerator(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)

	_, err := svc.Approve(context.Background(), employeeIdentity("e1"), "any", "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestApprove_AlreadyModerated(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	req, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionDrop,
	})
	require.NoError(t, err)

	manager := testIdentity(tenant.RoleManager)
	_, err = svc.Reject(context.Background(), manager, req.ID, "人手不够")
	require.NoError(t, err)

	// 已驳回的请求不能再通过
	_, err = svc.Approve(context.Background(), manager, req.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflictState))
}

func TestReject_DoesNotTouchShift(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	req, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionDrop,
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), testIdentity(tenant.RoleManager), req.ID, "缺人")
	require.NoError(t, err)
	assert.Equal(t, repository.TransferStatusRejected, rejected.Status)
	assert.Equal(t, "缺人", rejected.ManagerNote)

	shift, err := store.schedule.GetByUID(context.Background(), "t1", uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, shift.AssignedEmployees)
	assert.False(t, shift.UserEdited)
}

func TestList_FilterByStatus(t *testing.T) {
	store := newMemStore()
	svc := newTransferService(store)
	uid := "D1|2026-03-02|门店A|08:00-12:00"
	seedShift(t, store, uid, []string{"e1"})

	req, err := svc.Create(context.Background(), employeeIdentity("e1"), &CreateInput{
		ShiftUID: uid,
		Action:   repository.TransferActionDrop,
	})
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), testIdentity(tenant.RoleManager), req.ID, "")
	require.NoError(t, err)

	pending, err := svc.List(context.Background(), testIdentity(tenant.RoleManager), repository.ListFilter{Status: repository.TransferStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	rejected, err := svc.List(context.Background(), testIdentity(tenant.RoleManager), repository.ListFilter{Status: repository.TransferStatusRejected})
	require.NoError(t, err)
	assert.Len(t, rejected, 1)
}

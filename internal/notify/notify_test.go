package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/banbiao/internal/repository"
)

type fakeMailer struct {
	sent [][]string
	err  error
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type fakeDirectory struct {
	emails map[string]string
}

func (d *fakeDirectory) Upsert(ctx context.Context, e *repository.Employee) error { return nil }

func (d *fakeDirectory) Get(ctx context.Context, tenant, employeeID string) (*repository.Employee, error) {
	email, ok := d.emails[employeeID]
	if !ok {
		return nil, errors.New("不存在")
	}
	return &repository.Employee{EmployeeID: employeeID, Email: email}, nil
}

func (d *fakeDirectory) List(ctx context.Context, tenant string, filter repository.ListFilter) ([]*repository.Employee, error) {
	return nil, nil
}

func TestNotify_ResolvesAndDedupes(t *testing.T) {
	mailer := &fakeMailer{}
	n := New(mailer, &fakeDirectory{emails: map[string]string{
		"e1": "e1@example.com",
	}})

	// e1 查名录；直写地址原样使用；重复与未知的丢弃
	n.Notify(context.Background(), "t1",
		[]string{"e1", "e1@example.com", "direct@example.com", "unknown", ""},
		"班次已确认", "内容")

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"e1@example.com", "direct@example.com"}, mailer.sent[0])
}

func TestNotify_NoResolvableRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	n := New(mailer, &fakeDirectory{})

	n.Notify(context.Background(), "t1", []string{"unknown"}, "主题", "内容")
	assert.Empty(t, mailer.sent)
}

func TestNotify_SendFailureDoesNotPanic(t *testing.T) {
	n := New(&fakeMailer{err: errors.New("连接被拒绝")}, &fakeDirectory{})

	// 失败只记录，不向调用方传播
	n.Notify(context.Background(), "t1", []string{"a@example.com"}, "主题", "内容")
}

func TestTransferModerated_IncludesTarget(t *testing.T) {
	mailer := &fakeMailer{}
	n := New(mailer, &fakeDirectory{emails: map[string]string{
		"e1": "e1@example.com",
		"e2": "e2@example.com",
	}})

	n.TransferModerated(context.Background(), "t1", &repository.TransferRequest{
		ShiftUID:       "D1|2026-03-02|门店A|08:00-12:00",
		RequestedBy:    "e1",
		TargetEmployee: "e2",
		Action:         repository.TransferActionDrop,
		Status:         repository.TransferStatusApproved,
	})

	require.Len(t, mailer.sent, 1)
	assert.ElementsMatch(t, []string{"e1@example.com", "e2@example.com"}, mailer.sent[0])
}

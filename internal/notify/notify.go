// Package notify 提供尽力而为的邮件通知
//
// 通知失败只记日志和指标，绝不中断 API 流程。
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/paiban/banbiao/internal/config"
	"github.com/paiban/banbiao/internal/metrics"
	"github.com/paiban/banbiao/internal/repository"
	"github.com/paiban/banbiao/pkg/logger"
)

// Mailer 邮件发送接口
type Mailer interface {
	Send(to []string, subject, body string) error
}

// SMTPMailer 基于 net/smtp 的发送器
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer 创建 SMTP 发送器
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send 发送一封纯文本邮件
func (m *SMTPMailer) Send(to []string, subject, body string) error {
	if !m.cfg.Enabled {
		logger.Debug().Strs("to", to).Str("subject", subject).Msg("邮件通知未启用，跳过发送")
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.cfg.From, strings.Join(to, ", "), subject, body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(m.cfg.Addr(), auth, m.cfg.From, to, []byte(msg))
}

// Notifier 通知分发器，负责地址解析与发送
type Notifier struct {
	mailer    Mailer
	employees repository.EmployeeRepositoryInterface
}

// New 创建通知分发器
func New(mailer Mailer, employees repository.EmployeeRepositoryInterface) *Notifier {
	return &Notifier{mailer: mailer, employees: employees}
}

// resolve 把员工标识解析为邮件地址
// 含 '@' 的标识直接作为地址使用，否则查名录。
func (n *Notifier) resolve(ctx context.Context, tenant, token string) string {
	if token == "" {
		return ""
	}
	if strings.Contains(token, "@") {
		return token
	}
	emp, err := n.employees.Get(ctx, tenant, token)
	if err != nil || emp.Email == "" {
		return ""
	}
	return emp.Email
}

// Notify 解析收件人并发送，失败只记录
func (n *Notifier) Notify(ctx context.Context, tenant string, recipients []string, subject, body string) {
	var addrs []string
	seen := make(map[string]bool)
	for _, token := range recipients {
		addr := n.resolve(ctx, tenant, token)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return
	}

	if err := n.mailer.Send(addrs, subject, body); err != nil {
		metrics.RecordNotification(false)
		logger.Warn().Err(err).Strs("to", addrs).Str("subject", subject).Msg("通知发送失败")
		return
	}
	metrics.RecordNotification(true)
	logger.Info().Strs("to", addrs).Str("subject", subject).Msg("通知已发送")
}

// ShiftApproved 班次审批通过通知
func (n *Notifier) ShiftApproved(ctx context.Context, tenant, shiftUID string, employees []string, note string) {
	body := fmt.Sprintf("班次 %s 已通过审批。", shiftUID)
	if note != "" {
		body += "\n备注: " + note
	}
	n.Notify(ctx, tenant, employees, "班次已确认", body)
}

// TransferModerated 换班请求审批结果通知
func (n *Notifier) TransferModerated(ctx context.Context, tenant string, req *repository.TransferRequest) {
	subject := "换班请求已通过"
	if req.Status == repository.TransferStatusRejected {
		subject = "换班请求已拒绝"
	}
	body := fmt.Sprintf("班次 %s 的%s请求状态: %s。", req.ShiftUID, actionLabel(req.Action), req.Status)
	if req.ManagerNote != "" {
		body += "\n审批备注: " + req.ManagerNote
	}
	recipients := []string{req.RequestedBy}
	if req.TargetEmployee != "" {
		recipients = append(recipients, req.TargetEmployee)
	}
	n.Notify(ctx, tenant, recipients, subject, body)
}

func actionLabel(action string) string {
	switch action {
	case repository.TransferActionDrop:
		return "放弃"
	case repository.TransferActionClaim:
		return "认领"
	}
	return action
}

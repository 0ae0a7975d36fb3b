// Package mail SMTP 邮件发送
package mail

import (
	"context"
	"strings"
	"time"

	"chat_relay_server/internal/config"
	"chat_relay_server/pkg/errorx"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type sendFunc func(ctx context.Context, msg *gomail.Msg) error

// SMTPMailer 通过 SMTP 发送纯文本邮件
type SMTPMailer struct {
	from    string
	timeout time.Duration
	send    sendFunc
}

// NewSMTPMailer 按配置创建，Username 为空时不做认证
func NewSMTPMailer(conf *config.MailConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(conf.Port),
		gomail.WithTimeout(conf.Timeout()),
		gomail.WithTLSPolicy(tlsPolicy(conf.TLSPolicy)),
	}
	if conf.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(conf.Username),
			gomail.WithPassword(conf.Password),
		)
	}
	client, err := gomail.NewClient(conf.Host, opts...)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeMailError, "create smtp client")
	}

	m := &SMTPMailer{
		from:    conf.From,
		timeout: conf.Timeout(),
		send: func(ctx context.Context, msg *gomail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}
	zap.L().Info("smtp mailer enabled",
		zap.String("host", conf.Host), zap.Int("port", conf.Port),
		zap.String("from", m.from), zap.Duration("timeout", m.timeout))
	return m, nil
}

func tlsPolicy(s string) gomail.TLSPolicy {
	switch strings.ToLower(s) {
	case "mandatory":
		return gomail.TLSMandatory
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSOpportunistic
	}
}

// Send 发送一封邮件，最长等待 min(ctx 截止时间, 配置超时)
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errorx.Wrapf(err, errorx.CodeInvalidParam, "invalid sender %q", m.from)
	}
	if err := msg.To(to); err != nil {
		return errorx.Wrapf(err, errorx.CodeInvalidParam, "invalid recipient %q", to)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, body)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// 服务端握手阶段不读 ctx，这里按 ctx 返回，发送协程随连接超时退出
	done := make(chan error, 1)
	go func() { done <- m.send(ctx, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return errorx.Wrapf(err, errorx.CodeMailError, "smtp send to %s", to)
		}
		return nil
	case <-ctx.Done():
		return errorx.Wrapf(ctx.Err(), errorx.CodeMailError, "smtp send to %s", to)
	}
}

package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/gazette-cms/gazette/jobs"
)

func TestRenderOTP(t *testing.T) {
	msg, err := Render("a@example.com", KindOTP, Payload{Name: "Ana", Code: "042917", Purpose: "register", ExpiresIn: 5 * time.Minute})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", msg.To)
	require.Equal(t, "Your verification code", msg.Subject)
	require.Contains(t, msg.Body, "Hello Ana,")
	require.Contains(t, msg.Body, "register verification code is: 042917")
	require.Contains(t, msg.Body, "expires in 5 minutes")
}

func TestRenderReset(t *testing.T) {
	link := "https://gazette.example/reset-password?token=abc"
	msg, err := Render("a@example.com", KindPasswordReset, Payload{Link: link, ExpiresIn: 15 * time.Minute})
	require.NoError(t, err)
	require.Equal(t, "Reset your password", msg.Subject)
	require.Contains(t, msg.Body, "Hello,")
	require.Contains(t, msg.Body, link)
	require.Contains(t, msg.Body, "15 minutes")

	_, err = Render("a@example.com", Kind("sms"), Payload{})
	require.Error(t, err)
}

type stubQueue struct {
	got jobs.SendEmailPayload
	err error
}

func (q *stubQueue) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.got = payload
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func TestQueueNotifierEnqueuesRenderedMail(t *testing.T) {
	q := &stubQueue{}
	n := NewQueueNotifier(q, nil, time.Second)
	require.NoError(t, n.Deliver(context.Background(), "a@example.com", KindOTP, Payload{Code: "123456"}))
	require.Equal(t, "a@example.com", q.got.To)
	require.Contains(t, q.got.Body, "123456")
}

func TestQueueNotifierEnqueueFailureIsDeliveryFailure(t *testing.T) {
	n := NewQueueNotifier(&stubQueue{err: errors.New("redis: connection refused")}, nil, time.Second)
	err := n.Deliver(context.Background(), "a@example.com", KindOTP, Payload{Code: "123456"})
	require.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 2525, Username: "u", Password: "p", From: "no-reply@gazette.local"})
	require.NoError(t, err)
	var got *mail.Msg
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		got = msg
		return ctx.Err()
	}
	require.NoError(t, m.Send(context.Background(), "a@example.com", "Votre code: café", "line1\nline2"))
	rcpts, err := got.GetRecipients()
	require.NoError(t, err)
	require.Equal(t, []string{"a@example.com"}, rcpts)
	require.Equal(t, []string{"Votre code: café"}, got.GetGenHeader(mail.HeaderSubject))

	var raw bytes.Buffer
	_, err = got.WriteTo(&raw)
	require.NoError(t, err)
	require.Contains(t, raw.String(), "line1")
	require.NotContains(t, raw.String(), "Subject: Votre code: café", "non-ASCII subjects are encoded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, "a@example.com", "s", "b"), context.Canceled)

	m.send = func(context.Context, *mail.Msg) error { return errors.New("550") }
	require.ErrorContains(t, m.Send(context.Background(), "a@example.com", "s", "b"), "smtp send")
	require.ErrorContains(t, m.Send(context.Background(), "not an address", "s", "b"), "build message")
}

func TestSMTPMailerClientSettings(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 2525, TLSPolicy: "mandatory", Timeout: time.Second})
	require.NoError(t, err)
	client, err := m.client()
	require.NoError(t, err)
	require.Equal(t, "mail.local:2525", client.ServerAddr())
	require.Equal(t, "TLSMandatory", client.TLSPolicy())

	_, err = NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25, TLSPolicy: "sometimes"})
	require.ErrorContains(t, err, "tls policy")
}

func TestParseTLSPolicy(t *testing.T) {
	cases := map[string]mail.TLSPolicy{
		"":              mail.TLSOpportunistic,
		"Opportunistic": mail.TLSOpportunistic,
		"mandatory":     mail.TLSMandatory,
		" none ":        mail.NoTLS,
	}
	for in, want := range cases {
		got, err := ParseTLSPolicy(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

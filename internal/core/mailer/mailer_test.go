package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-tour-booking/internal/domain"
)

type recordSender struct {
	msgs []*Message
	err  error
}

func (r *recordSender) Send(_ context.Context, m *Message) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func TestMailer_SendWelcome(t *testing.T) {
	rec := &recordSender{}
	m := New(rec, "hello@natours.io", "Luna Lovelace")
	u := &domain.User{Name: "Sophie Louise Hart", Email: "sophie@example.com"}

	require.NoError(t, m.SendWelcome(context.Background(), u, "https://natours.io/me"))
	require.Len(t, rec.msgs, 1)

	msg := rec.msgs[0]
	assert.Equal(t, SubjectWelcome, msg.Subject)
	assert.Equal(t, "sophie@example.com", msg.To)
	assert.Equal(t, "hello@natours.io", msg.From)
	assert.Contains(t, msg.HTML, "Hi Sophie,")
	assert.Contains(t, msg.HTML, `href="https://natours.io/me"`)
	assert.Contains(t, msg.Text, "https://natours.io/me")
	assert.Contains(t, msg.Text, "- Luna Lovelace")
}

func TestMailer_SendPasswordReset(t *testing.T) {
	rec := &recordSender{}
	m := New(rec, "hello@natours.io", "Luna Lovelace")
	u := &domain.User{Name: "Max", Email: "max@example.com"}
	url := "https://natours.io/api/v1/users/resetPassword/abc"

	require.NoError(t, m.SendPasswordReset(context.Background(), u, url))
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, SubjectPasswordReset, rec.msgs[0].Subject)
	assert.Contains(t, rec.msgs[0].Text, url)
	assert.Contains(t, rec.msgs[0].Text, "10 minutes")
}

func TestMailer_SenderError(t *testing.T) {
	boom := errors.New("smtp down")
	m := New(&recordSender{err: boom}, "a@b.c", "x")

	err := m.SendWelcome(context.Background(), &domain.User{Name: "A", Email: "a@example.com"}, "u")
	assert.ErrorIs(t, err, boom)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core), true)

	require.NoError(t, s.Send(context.Background(), &Message{To: "a@example.com", Subject: "hi", Text: "body"}))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "a@example.com", entry.ContextMap()["to"])
	assert.Equal(t, "hi", entry.ContextMap()["subject"])
	assert.Equal(t, "body", entry.ContextMap()["body"])
}

func TestLogSender_OmitsBodyByDefault(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := New(NewLogSender(zap.New(core), false), "hello@natours.io", "Natours")

	u := &domain.User{Name: "Ann Lee", Email: "ann@example.com"}
	link := "https://natours.test/api/v1/users/resetPassword/abc123secret"
	require.NoError(t, m.SendPasswordReset(context.Background(), u, link))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "body")
	for _, v := range fields {
		assert.NotContains(t, v, "abc123secret")
	}
}

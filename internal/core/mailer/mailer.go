package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"

	"go-tour-booking/internal/domain"
)

const (
	SubjectWelcome       = "Welcome to the Natours Family"
	SubjectPasswordReset = "Your password reset token (valid for only 10 minutes)"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltpl.Must(htmltpl.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttpl.Must(texttpl.ParseFS(templateFS, "templates/*.txt"))
)

// Notifier 通知层：失败以 error 返回，由调用方决定是否致命
type Notifier interface {
	SendWelcome(ctx context.Context, u *domain.User, url string) error
	SendPasswordReset(ctx context.Context, u *domain.User, url string) error
}

type Message struct {
	FromName string
	From     string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

type Mailer struct {
	sender   Sender
	from     string
	fromName string
}

func New(sender Sender, from, fromName string) *Mailer {
	return &Mailer{sender: sender, from: from, fromName: fromName}
}

func (m *Mailer) SendWelcome(ctx context.Context, u *domain.User, url string) error {
	return m.send(ctx, u, url, "welcome", SubjectWelcome)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, u *domain.User, url string) error {
	return m.send(ctx, u, url, "password_reset", SubjectPasswordReset)
}

func (m *Mailer) send(ctx context.Context, u *domain.User, url, tpl, subject string) error {
	data := struct {
		FirstName string
		URL       string
		From      string
		Subject   string
	}{u.FirstName(), url, m.fromName, subject}

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, tpl+".html", data); err != nil {
		return fmt.Errorf("render %s html: %w", tpl, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, tpl+".txt", data); err != nil {
		return fmt.Errorf("render %s text: %w", tpl, err)
	}
	return m.sender.Send(ctx, &Message{
		FromName: m.fromName,
		From:     m.from,
		To:       u.Email,
		ToName:   u.Name,
		Subject:  subject,
		HTML:     html.String(),
		Text:     text.String(),
	})
}

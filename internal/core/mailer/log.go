package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender 不真正发信，只打日志。正文含重置链接（明文 token），只在 withBody 时输出
type LogSender struct {
	l        *zap.Logger
	withBody bool
}

func NewLogSender(l *zap.Logger, withBody bool) *LogSender {
	return &LogSender{l: l, withBody: withBody}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	fields := []zap.Field{
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	}
	if s.withBody {
		fields = append(fields, zap.String("body", msg.Text))
	}
	s.l.Info("mail (log driver)", fields...)
	return nil
}

package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/infra/logger"
)

// LogSMSSender stands in for an SMS provider. The message body, which carries the code,
// is only written when revealBody is set (development mode).
type LogSMSSender struct {
	logger     *zap.Logger
	revealBody bool
}

// NewLogSMSSender returns a placeholder SMS transport.
func NewLogSMSSender(log *zap.Logger, revealBody bool) *LogSMSSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSMSSender{logger: log, revealBody: revealBody}
}

// SendSMS logs the message and always succeeds.
func (s *LogSMSSender) SendSMS(ctx context.Context, to, body string) error {
	fields := []zap.Field{zap.String("to", logger.MaskPhone(to))}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if s.revealBody {
		fields = append(fields, zap.String("body", body))
	}
	s.logger.Info("sms delivery placeholder", fields...)
	return nil
}

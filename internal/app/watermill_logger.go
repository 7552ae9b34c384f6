package app

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// ZapWatermillLogger пишет логи watermill через zap
type ZapWatermillLogger struct {
	logger *zap.Logger
}

func NewZapWatermillLogger(logger *zap.Logger) *ZapWatermillLogger {
	return &ZapWatermillLogger{logger: logger.Named("watermill")}
}

func toZapFields(fields watermill.LogFields) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

func (l *ZapWatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *ZapWatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, toZapFields(fields)...)
}

func (l *ZapWatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

// Trace у zap нет, пишем как debug
func (l *ZapWatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

func (l *ZapWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZapWatermillLogger{logger: l.logger.With(toZapFields(fields)...)}
}

var _ watermill.LoggerAdapter = (*ZapWatermillLogger)(nil)

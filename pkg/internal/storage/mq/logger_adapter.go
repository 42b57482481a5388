package mq

import (
	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// zerologAdapter 将 zerolog 适配为 watermill.LoggerAdapter.
// watermill 的 Info 日志（router 启停、handler 注册）较多，降为 Debug 输出.
type zerologAdapter struct {
	l zerolog.Logger
}

// NewLogger 用 zerolog 实现 watermill.LoggerAdapter.
func NewLogger(l *zerolog.Logger) watermill.LoggerAdapter {
	return zerologAdapter{l: *l}
}

func emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	if len(fields) > 0 {
		ev = ev.Fields(map[string]any(fields))
	}

	ev.Msg(msg)
}

func (z zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	emit(z.l.Error().Err(err), msg, fields)
}

func (z zerologAdapter) Info(msg string, fields watermill.LogFields) {
	emit(z.l.Debug(), msg, fields)
}

func (z zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	emit(z.l.Debug(), msg, fields)
}

func (z zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	emit(z.l.Trace(), msg, fields)
}

func (z zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zerologAdapter{l: z.l.With().Fields(map[string]any(fields)).Logger()}
}

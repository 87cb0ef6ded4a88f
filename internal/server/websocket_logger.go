package server

import (
	"classpoll/pkg/logger"

	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for WebSocket events
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger(l *logger.Logger) *WebSocketLogger {
	base := zap.L()
	if l != nil {
		base = l.Logger
	}
	return &WebSocketLogger{
		logger: base.With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) Info(event string, clientID, name string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, clientID, name, fields)...)
}

func (l *WebSocketLogger) Error(event string, clientID, name string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, clientID, name, append(fields, zap.Error(err)))...)
}

func (l *WebSocketLogger) Warn(event string, clientID, name string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, clientID, name, fields)...)
}

func (l *WebSocketLogger) fields(event, clientID, name string, extra []zap.Field) []zap.Field {
	all := make([]zap.Field, 0, len(extra)+3)
	all = append(all,
		zap.String("event", event),
		zap.String("client_id", clientID),
	)
	if name != "" {
		all = append(all, zap.String("name", name))
	}
	return append(all, extra...)
}

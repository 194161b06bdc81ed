package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger emits one JSON line per event, tagged with the service name,
// a machine-readable action and the request id that caused it.
type Logger struct {
	service  string
	hostname string
	zl       *zap.Logger
}

func NewLogger(service string) *Logger {
	hostname, _ := os.Hostname()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)

	zl := zap.New(core).With(
		zap.String("service", service),
		zap.String("hostname", hostname),
	)

	return &Logger{
		service:  service,
		hostname: hostname,
		zl:       zl,
	}
}

func (l *Logger) Info(requestID, action, message string) {
	l.zl.Info(message, zap.String("action", action), zap.String("request_id", requestID))
}

func (l *Logger) Debug(requestID, action, message string) {
	l.zl.Debug(message, zap.String("action", action), zap.String("request_id", requestID))
}

func (l *Logger) Warn(requestID, action, message string) {
	l.zl.Warn(message, zap.String("action", action), zap.String("request_id", requestID))
}

func (l *Logger) Error(requestID, action, message string, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("request_id", requestID),
	}
	if err != nil {
		fields = append(fields, zap.Error(err), zap.StackSkip("stack", 1))
	}
	l.zl.Error(message, fields...)
}

func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

package scheduler

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// gocronLogger implements gocron.Logger on top of zap.
type gocronLogger struct {
	logger *zap.Logger
}

func NewGocronLogger(logger *zap.Logger) gocron.Logger {
	return &gocronLogger{logger: logger.Named("gocron")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, toFields(args)...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Info(msg, toFields(args)...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, toFields(args)...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Error(msg, toFields(args)...) }

// toFields pairs gocron's alternating key/value arguments. A trailing key
// without a value is logged under "value".
func toFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields = append(fields, zap.Any("value", args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		if err, ok := args[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}

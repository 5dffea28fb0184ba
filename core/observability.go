package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// metricTagKeys are the only log fields copied onto metric tags. Topics and
// ids stay out to keep label cardinality bounded.
var metricTagKeys = []string{"mode", "outcome"}

// observeOperation emits websub.<operation>.total and
// websub.<operation>.duration_ms and logs the outcome with fields.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	elapsed := time.Since(startedAt)
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}

	logFields := cloneFields(fields)
	logFields["event_type"] = operation
	logFields["status"] = status
	logFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logFields["error"] = err.Error()
		enrichErrorFields(logFields, err)
	}

	tags := metricTags(operation, status, logFields)
	s.recordCounter(ctx, "websub."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "websub."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	if err != nil {
		s.logError(ctx, operation+" failed", logFields)
		return
	}
	s.logInfo(ctx, operation+" succeeded", logFields)
}

func metricTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

func enrichErrorFields(fields map[string]any, err error) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return
	}
	fields["error_category"] = richErr.Category.String()
	if richErr.Code != 0 {
		fields["error_code"] = richErr.Code
	}
	if richErr.TextCode != "" {
		fields["error_text_code"] = richErr.TextCode
	}
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.fieldLogger(ctx, fields); logger != nil {
		logger.Info(message, flattenFields(RedactSensitiveMap(fields))...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.fieldLogger(ctx, fields); logger != nil {
		logger.Error(message, flattenFields(RedactSensitiveMap(fields))...)
	}
}

// fieldLogger returns the service logger bound to ctx, carrying the redacted
// fields when the logger supports WithFields.
func (s *Service) fieldLogger(ctx context.Context, fields map[string]any) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(RedactSensitiveMap(fields))
	}
	return logger
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

// flattenFields turns fields into sorted key/value args.
func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(strings.ToLower(operation)))
	if operation == "" {
		return "unknown"
	}
	return operation
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

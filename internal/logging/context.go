package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID identifies one ingestion pass.
	FieldBatchID = "batch_id"
	// FieldLogicalPath is the normalized path of the entry being processed.
	FieldLogicalPath = "logical_path"
	// FieldCategory is the catalog category of the entry being processed.
	FieldCategory = "category"
	// FieldIdentity is the registry identity of the entry being processed.
	FieldIdentity = "identity"
	// FieldAlert flags integrity failures that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	batchIDKey contextKey = iota
	logicalPathKey
	categoryKey
)

// WithBatchID stores the ingestion batch identifier on the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withValue(ctx, batchIDKey, id)
}

// WithLogicalPath stores the logical path being processed on the context.
func WithLogicalPath(ctx context.Context, logicalPath string) context.Context {
	return withValue(ctx, logicalPathKey, logicalPath)
}

// WithCategory stores the catalog category being processed on the context.
func WithCategory(ctx context.Context, category string) context.Context {
	return withValue(ctx, categoryKey, category)
}

// BatchIDFromContext returns the batch identifier, if any.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, batchIDKey)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringValue(ctx, batchIDKey); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if category, ok := stringValue(ctx, categoryKey); ok {
		fields = append(fields, slog.String(FieldCategory, category))
	}
	if logicalPath, ok := stringValue(ctx, logicalPathKey); ok {
		fields = append(fields, slog.String(FieldLogicalPath, logicalPath))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

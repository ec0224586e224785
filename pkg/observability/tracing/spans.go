package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const storeTracerName = "github.com/nimburion/taskmanager/store"

// SpanOperation classifies a store call; it prefixes the span name.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"
	SpanOperationDBTx     SpanOperation = "db.transaction"
)

// StoreCall describes one document store call.
type StoreCall struct {
	Operation  SpanOperation
	System     string // "mongodb"
	Database   string
	Collection string
	// Command is the driver command, such as "updateOne".
	Command string
}

func (c StoreCall) spanName() string {
	if c.Collection == "" {
		return "DB " + string(c.Operation)
	}
	return "DB " + string(c.Operation) + " " + c.Collection
}

func (c StoreCall) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("db.operation.kind", string(c.Operation))}
	if c.System != "" {
		attrs = append(attrs, semconv.DBSystemKey.String(c.System))
	}
	if c.Database != "" {
		attrs = append(attrs, semconv.DBNameKey.String(c.Database))
	}
	if c.Collection != "" {
		attrs = append(attrs, semconv.DBMongoDBCollectionKey.String(c.Collection))
	}
	if c.Command != "" {
		attrs = append(attrs, semconv.DBOperationKey.String(c.Command))
	}
	return attrs
}

// StartStoreSpan starts a client span for call on the global tracer provider.
func StartStoreSpan(ctx context.Context, call StoreCall) (context.Context, trace.Span) {
	return otel.Tracer(storeTracerName).Start(ctx, call.spanName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(call.attributes()...),
	)
}

// EndSpan sets the span status from err and ends it. Errors matching one of
// expected (such as a missing document) leave the span successful.
func EndSpan(span trace.Span, err error, expected ...error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			span.SetStatus(codes.Ok, "")
			return
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"

	"github.com/velomail/imapkit/internal/logger"
)

const (
	SpanTagComponent = "component"
	SpanTagMailbox   = "mailbox"
	SpanTagHost      = "host"
	SpanTagUser      = "user"
)

const (
	SpanTagComponentConnection = "imapConnection"
	SpanTagComponentPool       = "connectionPool"
	SpanTagComponentMailbox    = "mailboxService"
	SpanTagComponentSupervisor = "healthSupervisor"
)

func StartTracerSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	serverSpan := opentracing.GlobalTracer().StartSpan(operationName)
	return serverSpan, opentracing.ContextWithSpan(ctx, serverSpan)
}

func StartSpanFromContext(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

func TraceErr(span opentracing.Span, err error, fields ...log.Field) {
	if span == nil || err == nil {
		return
	}
	ext.LogError(span, err, fields...)
}

func TagComponentConnection(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentConnection)
}

func TagComponentPool(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentPool)
}

func TagComponentMailbox(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentMailbox)
}

func TagComponentSupervisor(span opentracing.Span) {
	span.SetTag(SpanTagComponent, SpanTagComponentSupervisor)
}

func TagMailbox(span opentracing.Span, mailbox string) {
	span.SetTag(SpanTagMailbox, mailbox)
}

// RecoverAndLog recovers a panic inside a background job and reports it.
func RecoverAndLog(log logger.Logger) {
	if r := recover(); r != nil {
		log.Errorf("recovered from panic: %v", r)
	}
}

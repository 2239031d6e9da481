// Package pipeline composes HTTP handlers from named steps. A route is built
// as Compose(handler, step...): steps run in order, each may enrich the
// request context or abort with an error, and the handler runs last. Errors
// from any stage are rendered once by the Responder.
package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clan-portal/backend/internal/audit"
	"clan-portal/backend/internal/telemetry"
	"clan-portal/backend/internal/telemetry/domain"
)

// Step is one named stage before the handler. Run returns the request to pass
// on (possibly with an enriched context) or an error that ends the request.
type Step struct {
	Name string
	Run  func(w http.ResponseWriter, r *http.Request) (*http.Request, error)
}

// HandlerFunc is the final stage. It writes the response on success and returns
// an error otherwise.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Pipeline holds the collaborators shared by every composed route.
type Pipeline struct {
	responder *Responder
	tracer    trace.Tracer
	auditor   audit.AuditLogger
	events    telemetry.EventEmitter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAuditor records routes built with ComposeAudited after they succeed.
func WithAuditor(a audit.AuditLogger) Option {
	return func(p *Pipeline) { p.auditor = a }
}

// WithEvents emits an http.request event after every composed route.
func WithEvents(e telemetry.EventEmitter) Option {
	return func(p *Pipeline) { p.events = e }
}

// New returns a Pipeline rendering through responder.
func New(responder *Responder, opts ...Option) *Pipeline {
	p := &Pipeline{
		responder: responder,
		tracer:    otel.Tracer("clan-portal/pipeline"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Responder returns the responder shared by composed routes.
func (p *Pipeline) Responder() *Responder { return p.responder }

// Compose builds an http.Handler running steps in order, then h.
func (p *Pipeline) Compose(h HandlerFunc, steps ...Step) http.Handler {
	return p.compose(h, false, steps)
}

// ComposeAudited is Compose plus an audit entry derived from the route after h succeeds.
func (p *Pipeline) ComposeAudited(h HandlerFunc, steps ...Step) http.Handler {
	return p.compose(h, true, steps)
}

func (p *Pipeline) compose(h HandlerFunc, audited bool, steps []Step) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() { p.emitRequest(r, rec.status, start) }()

		for _, s := range steps {
			next, err := p.runStep(s, rec, r)
			if err != nil {
				p.responder.Error(rec, err)
				return
			}
			r = next
		}
		ctx, span := p.tracer.Start(r.Context(), "handler")
		err := h(rec, r.WithContext(ctx))
		endSpan(span, err)
		if err != nil {
			p.responder.Error(rec, err)
			return
		}
		if audited && p.auditor != nil {
			p.recordAudit(r)
		}
	})
}

func (p *Pipeline) runStep(s Step, w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	ctx, span := p.tracer.Start(r.Context(), "step."+s.Name)
	next, err := s.Run(w, r.WithContext(ctx))
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = r
	}
	// The span context must not leak into later stages.
	return next.WithContext(contextWithoutSpan(next.Context(), r.Context())), nil
}

func (p *Pipeline) recordAudit(r *http.Request) {
	authID := ""
	if a, ok := AuthFromContext(r.Context()); ok {
		authID = a.ID
	}
	ar := audit.ParseRoute(r.Method, routePattern(r))
	meta := ""
	if id := chi.URLParam(r, "id"); id != "" {
		meta = id
	}
	p.auditor.LogEvent(r.Context(), authID, ar.Action, ar.Resource, meta)
}

// requestMetadata is the JSON shape stored in http.request event metadata.
type requestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"durationMs"`
	ClientIP   string `json:"clientIp"`
}

func (p *Pipeline) emitRequest(r *http.Request, status int, start time.Time) {
	if p.events == nil {
		return
	}
	meta, _ := json.Marshal(requestMetadata{
		Method:     r.Method,
		Route:      routePattern(r),
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		ClientIP:   ClientIPFromContext(r.Context()),
	})
	authID := ""
	if a, ok := AuthFromContext(r.Context()); ok {
		authID = a.ID
	}
	telemetry.EmitAsync(r.Context(), p.events, &domain.Event{
		ID:        uuid.New().String(),
		AuthID:    authID,
		EventType: "http.request",
		Source:    "pipeline",
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("pipeline.aborted", true))
	}
	span.End()
}

// contextWithoutSpan keeps the values a step added but restores the span of parent.
func contextWithoutSpan(ctx, parent context.Context) context.Context {
	return trace.ContextWithSpan(ctx, trace.SpanFromContext(parent))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/PippiShao/IMDB/internal/analytics"
	"github.com/PippiShao/IMDB/internal/protocol"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
	"github.com/PippiShao/IMDB/pkg/logger"
	"github.com/PippiShao/IMDB/pkg/tracing"
)

// handle runs the server side of the protocol for one connection and closes
// it. Errors end only this connection.
func (s *Server) handle(ctx context.Context, nc net.Conn) {
	connID := uuid.NewString()
	remote := nc.RemoteAddr().String()
	ctx = logger.WithConnID(ctx, connID)
	log := logger.FromContext(ctx).With("component", "conn-worker", "remote_addr", remote)
	ctx, span := tracing.StartSpan(ctx, "connection", connID)

	conn := protocol.NewConn(ctx, nc, s.protocol)
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	start := time.Now()
	event := analytics.QueryEvent{
		ConnID:      connID,
		RemoteAddr:  remote,
		Fingerprint: s.fingerprint,
		Timestamp:   start.UTC(),
	}
	log.Info("connection accepted")

	err := s.converse(ctx, conn, &event, log)
	if err != nil {
		event.Outcome = analytics.Outcome(apperrors.Kind(err))
	}
	event.LatencyMs = time.Since(start).Milliseconds()

	span.SetAttr("query", event.Query)
	span.SetAttr("outcome", string(event.Outcome))
	span.End()
	span.Log(log)

	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(string(event.Outcome)).Inc()
		if apperrors.Kind(err) == "protocol_violation" {
			s.metrics.ProtocolViolations.Inc()
		}
	}
	if s.recorder != nil {
		s.recorder.Record(event)
	}

	attrs := []any{
		"query", event.Query,
		"count", event.Count,
		"items_sent", event.ItemsSent,
		"duration", time.Since(start).Round(time.Microsecond),
	}
	switch kind := apperrors.Kind(err); kind {
	case "ok":
		log.Info("connection finished", attrs...)
	case "protocol_violation", "resource_exhausted", "connection_closed", "frame_too_large":
		log.Warn("connection aborted", append(attrs, "kind", kind, "error", err)...)
	default:
		log.Error("connection failed", append(attrs, "kind", kind, "error", err)...)
	}
}

func (s *Server) converse(ctx context.Context, conn *protocol.Conn, event *analytics.QueryEvent, log *slog.Logger) error {
	if err := conn.SendAck(); err != nil {
		return fmt.Errorf("sending ack: %w", err)
	}
	frame, err := conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("reading query: %w", err)
	}
	event.Query = string(frame)

	plan := s.searcher.Plan(event.Query)
	event.Terms = plan.Terms
	event.Mode = plan.Mode.String()

	_, evalSpan := tracing.StartChildSpan(ctx, "evaluate")
	evalStart := time.Now()
	it, err := s.searcher.FindPlan(ctx, plan)
	evalSpan.End()
	if s.metrics != nil {
		s.metrics.QueryLatency.Observe(time.Since(evalStart).Seconds())
	}
	if err != nil {
		return fmt.Errorf("evaluating query: %w", err)
	}

	if it == nil {
		evalSpan.SetAttr("results", 0)
		if s.metrics != nil {
			s.metrics.QueryResultsCount.Observe(0)
		}
		if err := conn.WriteCount(0); err != nil {
			return fmt.Errorf("sending count: %w", err)
		}
		if err := conn.SendGoodbye(); err != nil {
			return fmt.Errorf("sending goodbye: %w", err)
		}
		event.Outcome = analytics.OutcomeZeroResult
		return nil
	}
	defer it.Close()

	event.Count = it.Count()
	evalSpan.SetAttr("results", event.Count)
	if s.metrics != nil {
		s.metrics.QueryResultsCount.Observe(float64(event.Count))
	}
	if err := conn.WriteCount(event.Count); err != nil {
		return fmt.Errorf("sending count: %w", err)
	}

	_, streamSpan := tracing.StartChildSpan(ctx, "stream")
	defer streamSpan.End()
	for more := true; more; more = it.Advance() {
		id, err := it.Current()
		if err != nil {
			return fmt.Errorf("reading result cursor: %w", err)
		}
		if err := conn.ExpectAck(); err != nil {
			return fmt.Errorf("awaiting ack for item %d of %d: %w", it.Position()+1, event.Count, err)
		}
		text, err := s.resolver.Resolve(id)
		if err != nil {
			return fmt.Errorf("resolving document %d: %w", id, err)
		}
		if err := conn.WriteFrame([]byte(text)); err != nil {
			return fmt.Errorf("sending document %d: %w", id, err)
		}
		event.ItemsSent++
		if s.metrics != nil {
			s.metrics.ItemsSentTotal.Inc()
		}
		log.Debug("item sent", "doc_id", id, "position", it.Position())
	}
	streamSpan.SetAttr("items", event.ItemsSent)

	if err := conn.ExpectAck(); err != nil {
		return fmt.Errorf("awaiting final ack: %w", err)
	}
	if err := conn.SendGoodbye(); err != nil {
		return fmt.Errorf("sending goodbye: %w", err)
	}
	event.Outcome = analytics.OutcomeOK
	return nil
}

package server

import (
	"context"
	"errors"
	"net"
	"quiet/internal/packet"
	"quiet/internal/schedule"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const name = "quiet/internal/server"

var (
	tracer = otel.Tracer(name)
	logger = otelslog.NewLogger(name)
)

var genPacketID atomic.Int64

func newPacketID() int64 {
	return genPacketID.Add(1)
}

type Server struct {
	Schedule *schedule.Schedule

	// Now is the clock used to pick the current hour.
	Now func() time.Time

	queries metric.Int64Counter
	dropped metric.Int64Counter
}

func New(s *schedule.Schedule) *Server {
	meter := otel.Meter(name)

	queries, err := meter.Int64Counter("quietd.queries",
		metric.WithDescription("Answered quiet time queries"),
	)
	if err != nil {
		otel.Handle(err)
	}
	dropped, err := meter.Int64Counter("quietd.dropped",
		metric.WithDescription("Packets dropped without a reply"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &Server{
		Schedule: s,
		Now:      time.Now,
		queries:  queries,
		dropped:  dropped,
	}
}

// HandlePacket answers a quiet time query. Packets that are not valid
// queries are dropped and nil is returned.
func (s *Server) HandlePacket(ctx context.Context, data []byte, addr net.Addr) []byte {
	packetID := newPacketID()

	var from string
	if addr != nil {
		from = addr.String()
	}

	ctx, span := tracer.Start(
		ctx,
		"quiet-query",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int64("packet-id", packetID)),
		trace.WithAttributes(attribute.String("client-address", from)),
	)
	defer span.End()

	logger.DebugContext(ctx, "Received packet", "id", packetID, "size", len(data), "from", from)

	q, err := packet.ParseQuery(data)
	if err != nil {
		logger.WarnContext(ctx, "Dropping packet", "id", packetID, "error", err)
		span.RecordError(err)
		s.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", dropReason(err))))
		return nil
	}

	hour := s.Now().Hour()
	resp := packet.NewResponse(s.Schedule.IsQuiet(hour), s.Schedule.WakeUpIn(hour), q.Whoami)

	reply, err := resp.Marshal()
	if err != nil {
		logger.ErrorContext(ctx, "Failed marshalling response", "id", packetID, "error", err)
		span.RecordError(err)
		s.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "marshal")))
		return nil
	}

	logger.InfoContext(ctx, "Answered query",
		"id", packetID,
		"whoami", q.Whoami,
		"quiet", resp.IsQuiet,
		"wake-up", resp.WakeUp,
	)
	span.SetAttributes(attribute.Bool("quiet", resp.IsQuiet))
	s.queries.Add(ctx, 1, metric.WithAttributes(attribute.Bool("quiet", resp.IsQuiet)))

	return reply
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, packet.ErrUnsupportedVersion):
		return "version"
	case errors.Is(err, packet.ErrWrongType):
		return "type"
	default:
		return "malformed"
	}
}

package qnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"quiet/internal/packet"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/ipv4"
)

const name = "quiet/internal/qnet"

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 20111
)

var (
	tracer = otel.Tracer(name)
	logger = otelslog.NewLogger(name)
)

// ErrInvalidDSCP is returned by Dial for DSCP values that do not fit in six bits.
var ErrInvalidDSCP = errors.New("dscp must be in 0..63")

// ErrReplyTooLarge is returned when a reply does not fit in packet.MaxReplyLen bytes.
var ErrReplyTooLarge = fmt.Errorf("%w: reply larger than %d bytes", packet.ErrMalformed, packet.MaxReplyLen)

// NetworkError reports a failed socket operation.
type NetworkError struct {
	Op   string
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func netErr(op string, addr net.Addr, err error) error {
	var a string
	if addr != nil {
		a = addr.String()
	}
	return &NetworkError{Op: op, Addr: a, Err: pkgerrors.WithStack(err)}
}

type DialConfig struct {
	// Addr is the server host:port, DefaultHost:DefaultPort when empty.
	Addr string

	// DSCP marks outgoing packets, zero leaves the TOS byte alone.
	DSCP int
}

// Exchange is the result of one request/reply round trip.
type Exchange struct {
	Request  []byte
	Reply    []byte
	Response packet.Response
	From     net.Addr
	RTT      time.Duration
}

// Exchanger sends a query over a datagram socket and waits for one reply.
type Exchanger struct {
	Conn net.PacketConn
	Addr net.Addr

	// OnSend, when set, sees the raw request before it is written.
	OnSend func(request []byte)

	// mu guards call, which identifies the exchange allowed to move the
	// read deadline from a cancellation callback.
	mu   sync.Mutex
	call uint64
}

// Dial opens an unconnected IPv4 UDP socket for talking to cfg.Addr.
func Dial(ctx context.Context, cfg DialConfig) (*Exchanger, error) {
	if cfg.DSCP < 0 || cfg.DSCP > 63 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDSCP, cfg.DSCP)
	}

	addr := cfg.Addr
	if addr == "" {
		addr = net.JoinHostPort(DefaultHost, fmt.Sprint(DefaultPort))
	}

	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, netErr("resolve", nil, err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, netErr("listen", nil, err)
	}

	if cfg.DSCP > 0 {
		if err := ipv4.NewPacketConn(conn).SetTOS(cfg.DSCP << 2); err != nil {
			conn.Close()
			return nil, netErr("set tos", nil, err)
		}
	}

	logger.DebugContext(ctx, "socket ready", "local", conn.LocalAddr().String(), "server", raddr.String())

	return &Exchanger{Conn: conn, Addr: raddr}, nil
}

func (e *Exchanger) Close() error {
	return e.Conn.Close()
}

// Exchange performs exactly one round trip. The read blocks until a reply
// arrives, the context deadline passes, or the context is cancelled.
func (e *Exchanger) Exchange(ctx context.Context, q packet.Query) (Exchange, error) {
	ctx, span := tracer.Start(
		ctx,
		"exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("server-address", e.Addr.String())),
	)
	defer span.End()

	ex, err := e.exchange(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "exchange failed", "server", e.Addr.String(), "error", err)
		return ex, err
	}

	span.SetAttributes(
		attribute.Int("reply-size", len(ex.Reply)),
		attribute.Bool("quiet", ex.Response.IsQuiet),
	)
	return ex, nil
}

func (e *Exchanger) exchange(ctx context.Context, q packet.Query) (Exchange, error) {
	var ex Exchange

	req, err := q.Marshal()
	if err != nil {
		return ex, fmt.Errorf("marshal query: %w", err)
	}
	ex.Request = req

	if e.OnSend != nil {
		e.OnSend(req)
	}

	deadline, _ := ctx.Deadline()
	e.mu.Lock()
	e.call++
	call := e.call
	err = e.Conn.SetDeadline(deadline)
	e.mu.Unlock()
	if err != nil {
		return ex, netErr("set deadline", e.Addr, err)
	}

	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		// a later exchange owns the deadline now
		if e.call != call {
			return
		}
		e.Conn.SetReadDeadline(time.Now())
	})
	defer stop()

	start := time.Now()
	if _, err := e.Conn.WriteTo(req, e.Addr); err != nil {
		return ex, e.ioErr(ctx, "send", err)
	}
	logger.DebugContext(ctx, "sent query", "bytes", len(req), "server", e.Addr.String())

	buf := make([]byte, packet.MaxReplyLen+1)
	n, from, err := e.Conn.ReadFrom(buf)
	if err != nil {
		return ex, e.ioErr(ctx, "receive", err)
	}
	ex.RTT = time.Since(start)
	ex.From = from
	ex.Reply = buf[:n]

	logger.DebugContext(ctx, "received reply", "bytes", n, "from", from.String(), "rtt", ex.RTT)

	if n > packet.MaxReplyLen {
		return ex, ErrReplyTooLarge
	}

	resp, err := packet.ParseResponse(ex.Reply)
	if err != nil {
		return ex, fmt.Errorf("parse reply: %w", err)
	}
	ex.Response = resp

	return ex, nil
}

// ioErr prefers the context error when cancellation caused the failure.
func (e *Exchanger) ioErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
	} else if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		err = errors.Join(context.DeadlineExceeded, err)
	}
	return netErr(op, e.Addr, err)
}

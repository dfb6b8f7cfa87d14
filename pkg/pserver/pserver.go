package pserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"quiet/internal/packet"
	"sync"
)

// PacketHandlerFunc handles one datagram and returns the reply, nil means no reply.
type PacketHandlerFunc func(ctx context.Context, packet []byte, addr net.Addr) []byte

type Middleware func(next PacketHandlerFunc) PacketHandlerFunc

// ListenServeUDP binds addr and serves datagrams until ctx is cancelled.
func ListenServeUDP(ctx context.Context, handler PacketHandlerFunc, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", addr, err)
	}
	ln, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s, %w", addr, err)
	}
	log.Printf("server started successfully, listening on: %s\n", ln.LocalAddr())
	return ServeUDP(ctx, ln, handler)
}

// ServeUDP reads datagrams from conn and handles each one in its own
// goroutine. It closes conn when ctx is done and waits for running handlers.
func ServeUDP(ctx context.Context, conn net.PacketConn, handler PacketHandlerFunc) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	buffer := make([]byte, packet.MaxReplyLen)
	for {
		n, remoteAddr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		msg := make([]byte, n)
		copy(msg, buffer[:n])

		wg.Add(1)
		go func() {
			defer wg.Done()
			response := handler(ctx, msg, remoteAddr)
			if response == nil {
				return
			}
			if _, err := conn.WriteTo(response, remoteAddr); err != nil {
				log.Printf("error writing reply to %s: %v\n", remoteAddr, err)
			}
		}()
	}
}

func WithMiddleware(handler PacketHandlerFunc, ms ...Middleware) PacketHandlerFunc {
	for i := len(ms) - 1; i >= 0; i-- {
		handler = ms[i](handler)
	}
	return handler
}

func LoggingMiddleware(next PacketHandlerFunc) PacketHandlerFunc {
	return func(ctx context.Context, msg []byte, addr net.Addr) []byte {
		log.Printf("got %d bytes from: %s\n", len(msg), addr)
		response := next(ctx, msg, addr)
		if response == nil {
			log.Printf("no reply to: %s\n", addr)
		} else {
			log.Printf("sent %d bytes to: %s\n", len(response), addr)
		}
		return response
	}
}

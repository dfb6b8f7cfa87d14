package e2e

import (
	"context"
	"net"
	"quiet/internal/packet"
	"quiet/internal/qnet"
	"quiet/internal/schedule"
	"quiet/internal/server"
	"quiet/pkg/pserver"
	"testing"
	"time"

	"github.com/xtaci/lossyconn"
)

func startServer(t *testing.T, conn net.PacketConn, hour int) {
	t.Helper()

	sched, err := schedule.Parse("0-7,14-23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := server.New(sched)
	s.Now = func() time.Time {
		return time.Date(2024, time.March, 1, hour, 0, 0, 0, time.Local)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pserver.ServeUDP(ctx, conn, s.HandlePacket) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
}

func TestQuietQueryOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	startServer(t, conn, 23)

	e, err := qnet.Dial(context.Background(), qnet.DialConfig{Addr: conn.LocalAddr().String()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer e.Close()

	for _, name := range []string{"william", "quietctl", ""} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ex, err := e.Exchange(ctx, packet.NewQuery(name))
		cancel()
		if err != nil {
			t.Fatalf("exchange %q: %v", name, err)
		}

		want := packet.NewResponse(true, 9, name)
		if ex.Response != want {
			t.Errorf("got %+v, want %+v", ex.Response, want)
		}
	}
}

func TestAwakeOverLossyLink(t *testing.T) {
	serverConn, err := lossyconn.NewLossyConn(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	startServer(t, serverConn, 10)

	clientConn, err := lossyconn.NewLossyConn(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer clientConn.Close()

	e := &qnet.Exchanger{Conn: clientConn, Addr: serverConn.LocalAddr()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ex, err := e.Exchange(ctx, packet.NewQuery("william"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	want := packet.NewResponse(false, 0, "william")
	if ex.Response != want {
		t.Errorf("got %+v, want %+v", ex.Response, want)
	}
}

func TestUnsupportedVersionGetsNoReply(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	startServer(t, conn, 3)

	e, err := qnet.Dial(context.Background(), qnet.DialConfig{Addr: conn.LocalAddr().String()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer e.Close()

	q := packet.NewQuery("william")
	q.Version = 9

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := e.Exchange(ctx, q); err == nil {
		t.Errorf("expected no reply for an unsupported version")
	}
}

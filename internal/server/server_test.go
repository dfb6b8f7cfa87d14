package server

import (
	"context"
	"quiet/internal/packet"
	"quiet/internal/schedule"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestServer(t *testing.T, hour int) *Server {
	t.Helper()
	sched, err := schedule.Parse("0-7,14-23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := New(sched)
	s.Now = func() time.Time {
		return time.Date(2024, time.March, 1, hour, 30, 0, 0, time.UTC)
	}
	return s
}

func TestHandleQuery(t *testing.T) {
	var tests = []struct {
		hour  int
		quiet bool
		wake  uint8
	}{
		{3, true, 5},
		{9, false, 0},
		{20, true, 12},
	}

	for _, tt := range tests {
		s := newTestServer(t, tt.hour)

		req, _ := packet.NewQuery("william").Marshal()
		reply := s.HandlePacket(context.Background(), req, nil)
		if reply == nil {
			t.Fatalf("expected reply at hour %d", tt.hour)
		}

		resp, err := packet.ParseResponse(reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := packet.NewResponse(tt.quiet, tt.wake, "william")
		if resp != want {
			t.Errorf("hour %d: got %+v, want %+v", tt.hour, resp, want)
		}
	}
}

func TestHandleDropsInvalid(t *testing.T) {
	var packets = [][]byte{
		{},
		{0x01},
		{0x02, 0x01, 0x00},
		{0x01, 0x02, 0x00},
		{0x01, 0x01, 0x04, 'a'},
	}

	s := newTestServer(t, 12)
	for _, p := range packets {
		if reply := s.HandlePacket(context.Background(), p, nil); reply != nil {
			t.Errorf("packet % x: expected no reply, got % x", p, reply)
		}
	}
}

func TestHandleCountsQueries(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	s := newTestServer(t, 3)
	req, _ := packet.NewQuery("counted").Marshal()
	s.HandlePacket(context.Background(), req, nil)
	s.HandlePacket(context.Background(), req, nil)
	s.HandlePacket(context.Background(), []byte{0x09}, nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				got[m.Name] += dp.Value
			}
		}
	}

	if got["quietd.queries"] != 2 {
		t.Errorf("queries = %d, want 2", got["quietd.queries"])
	}
	if got["quietd.dropped"] != 1 {
		t.Errorf("dropped = %d, want 1", got["quietd.dropped"])
	}
}

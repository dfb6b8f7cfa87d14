package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"quiet/internal/config"
	"quiet/internal/schedule"
	"quiet/internal/server"
	"quiet/internal/telemetry"
	"quiet/pkg/pserver"
	"syscall"
	"time"
)

func main() {
	config.Load()

	var (
		addr           = flag.String("addr", config.String("QUIETD_ADDR", "127.0.0.1:20111"), "UDP address to listen on")
		quietHours     = flag.String("quiet-hours", config.String("QUIETD_QUIET_HOURS", "0-7,14-23"), "Quiet hours, e.g. 0-7,14-23")
		traceStdout    = flag.Bool("trace", config.Bool("QUIETD_TRACE", false), "Write spans to stdout when no OTLP endpoint is set")
		metricInterval = flag.Duration("metric-interval", config.Duration("QUIETD_METRIC_INTERVAL", 0), "Write metrics to stdout at this interval, 0 disables")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := telemetry.Options{ServiceName: "quietd", LogWriter: os.Stdout}
	if *traceStdout {
		opts.TraceWriter = os.Stdout
	}
	if *metricInterval > 0 {
		opts.MetricWriter = os.Stdout
		opts.MetricInterval = *metricInterval
	}

	shutdown, err := telemetry.Setup(ctx, opts)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	sched, err := schedule.Parse(*quietHours)
	if err != nil {
		log.Fatalf("invalid quiet hours %q: %v", *quietHours, err)
	}
	log.Printf("quiet hours: %s\n", sched)

	if err := serve(ctx, sched, *addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

func serve(ctx context.Context, sched *schedule.Schedule, addr string) error {
	s := server.New(sched)

	handler := pserver.WithMiddleware(
		s.HandlePacket,
		pserver.LoggingMiddleware,
	)

	return pserver.ListenServeUDP(ctx, handler, addr)
}


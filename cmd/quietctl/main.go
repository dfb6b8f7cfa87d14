package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"quiet/internal/config"
	"quiet/internal/packet"
	"quiet/internal/qnet"
	"quiet/internal/telemetry"
	"time"
)

func main() {
	config.Load()

	var (
		name    = flag.String("name", config.String("QUIET_NAME", "william"), "Name sent in the query")
		addr    = flag.String("addr", config.String("QUIET_ADDR", "127.0.0.1:20111"), "Address of the quiet hours server")
		timeout = flag.Duration("timeout", config.Duration("QUIET_TIMEOUT", 5*time.Second), "How long to wait for the reply, 0 waits forever")
		dscp    = flag.Int("dscp", config.Int("QUIET_DSCP", 0), "DSCP value for the outgoing packet")
		verbose = flag.Bool("v", config.Bool("QUIET_VERBOSE", false), "Log to stderr")
	)
	flag.Parse()

	ctx := context.Background()

	var logWriter io.Writer
	if *verbose {
		logWriter = os.Stderr
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{ServiceName: "quietctl", LogWriter: logWriter})
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}

	if err := run(ctx, os.Stdout, *name, *addr, *timeout, *dscp); err != nil {
		shutdown(ctx)
		log.Fatalf("exchange failed: %v", err)
	}

	if err := shutdown(ctx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}

func run(ctx context.Context, w io.Writer, name, addr string, timeout time.Duration, dscp int) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e, err := qnet.Dial(ctx, qnet.DialConfig{Addr: addr, DSCP: dscp})
	if err != nil {
		return err
	}
	defer e.Close()

	e.OnSend = func(req []byte) { writeRequest(w, req) }

	ex, err := e.Exchange(ctx, packet.NewQuery(name))
	if err != nil {
		return err
	}

	writeReport(w, ex.Response)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/eventpipe"
)

func main() {
	// start mock httpbin (see mock_server.go); the 6th request fails
	go StartMockHTTPBin(":9999", 5)
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ep, err := eventpipe.New(
		eventpipe.WithStrategy(eventpipe.StrategyRemote),
		eventpipe.WithBaseURL("http://localhost:9999/"),
		eventpipe.WithPeriod(2*time.Second),
		eventpipe.WithFetchTimeout(time.Second),
		eventpipe.WithListenAddr(":8080"),
		eventpipe.WithTitle("eventpipe demo"),
		eventpipe.WithLogger(logger),
		eventpipe.WithEventCallback(func(ev eventpipe.Event) {
			fmt.Printf("event %d: %d bytes\n", ev.Seq, len(ev.Payload))
		}),
	)
	if err != nil {
		slog.Error("failed to create eventpipe", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   eventpipe demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   A tick every 2s fetches the mock /get endpoint.     ║")
	fmt.Println("  ║   The 6th fetch fails and the pipeline stops.         ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ep.Start(ctx); err != nil {
		slog.Error("eventpipe error", "error", err)
		os.Exit(1)
	}

	if err := ep.Err(); err != nil {
		fmt.Printf("pipeline ended with: %v\n", err)
	}
}

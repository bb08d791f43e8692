// Standalone mock httpbin server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver -fail-after 5
//
// Then in another terminal:
//
//	go run ./cmd/eventpipe run -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	failAfter := flag.Int64("fail-after", 0, "answer 500 after this many requests (0 = never)")
	flag.Parse()

	fmt.Printf("Mock httpbin starting on %s\n", *addr)
	if *failAfter > 0 {
		fmt.Printf("Requests after #%d fail with 500\n", *failAfter)
	}
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var requests atomic.Int64

	http.HandleFunc("GET /get", func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if *failAfter > 0 && n > *failAfter {
			slog.Info("failing request", "request", n)
			http.Error(w, `{"error": "upstream unavailable"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"args":   map[string]string{},
			"origin": r.RemoteAddr,
			"url":    "http://" + r.Host + r.URL.String(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}

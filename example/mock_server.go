package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

// StartMockHTTPBin runs a mock of httpbin's /get endpoint.
//
// Every response echoes the request the way httpbin does. When failAfter is
// positive, request number failAfter+1 and later receive a 500, which ends
// the pipeline after failAfter events.
// Call this in a goroutine before starting eventpipe.
func StartMockHTTPBin(addr string, failAfter int64) {
	var requests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /get", func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		if failAfter > 0 && n > failAfter {
			slog.Info("mock failing request", "request", n)
			http.Error(w, `{"error": "upstream unavailable"}`, http.StatusInternalServerError)
			return
		}

		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"args":    map[string]string{},
			"headers": headers,
			"origin":  r.RemoteAddr,
			"url":     "http://" + r.Host + r.URL.String(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

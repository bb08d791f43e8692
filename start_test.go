package eventpipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jpalmerr/eventpipe/internal/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// runInBackground starts ep and returns an idempotent function that cancels
// it and returns Start's result.
func runInBackground(t *testing.T, ep *EventPipe) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()
	return sync.OnceValue(func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Error("Start() did not return after context cancellation")
			return nil
		}
	})
}

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ep, err := New(
		WithStrategy(StrategyLocal),
		WithPeriod(50*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	// verify Start is still blocking
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	if ep.State() != StateCancelled {
		t.Errorf("State() = %q, want %q", ep.State(), StateCancelled)
	}
	if ep.Err() != nil {
		t.Errorf("Err() = %v, want nil after cancellation", ep.Err())
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	ep, err := New(WithStrategy(StrategyLocal), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}

	if ep.State() != StateIdle {
		t.Errorf("State() = %q, want %q", ep.State(), StateIdle)
	}
}

func TestStart_SecondCallFails(t *testing.T) {
	ep, err := New(WithStrategy(StrategyLocal), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = ep.Start(ctx)

	if err := ep.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_LocalEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event

	ep, err := New(
		WithStrategy(StrategyLocal),
		WithPeriod(30*time.Millisecond),
		WithLogger(testLogger()),
		WithEventCallback(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runInBackground(t, ep)
	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 3
	})
	if err := stop(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, ev := range events {
		want := fmt.Sprintf("Event ----> %d", i)
		if ev.Payload != want {
			t.Errorf("events[%d].Payload = %q, want %q", i, ev.Payload, want)
		}
		if ev.Seq != uint64(i) {
			t.Errorf("events[%d].Seq = %d, want %d", i, ev.Seq, i)
		}
		if ev.Strategy != StrategyLocal {
			t.Errorf("events[%d].Strategy = %q, want %q", i, ev.Strategy, StrategyLocal)
		}
		if ev.SubscriptionID == "" {
			t.Errorf("events[%d].SubscriptionID is empty", i)
		}
		if ev.PublishedAt.Before(ev.GeneratedAt) {
			t.Errorf("events[%d] published before generated", i)
		}
	}
}

func TestStart_RemoteEvents(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/get" {
			t.Errorf("request path = %q, want /get", r.URL.Path)
		}
		_, _ = w.Write([]byte("pong"))
	}))
	defer ts.Close()

	var mu sync.Mutex
	var payloads []string

	ep, err := New(
		WithBaseURL(ts.URL),
		WithPeriod(30*time.Millisecond),
		WithLogger(testLogger()),
		WithEventCallback(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, ev.Payload)
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runInBackground(t, ep)
	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) >= 3
	})
	if err := stop(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, p := range payloads {
		if p != "pong" {
			t.Errorf("payloads[%d] = %q, want %q", i, p, "pong")
		}
	}
	if int(requests.Load()) < len(payloads) {
		t.Errorf("requests = %d, want at least %d", requests.Load(), len(payloads))
	}
}

// TestStart_RemoteFailureKeepsRunning verifies that a failed fetch ends the
// pipeline without ending Start.
func TestStart_RemoteFailureKeepsRunning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	ep, err := New(
		WithBaseURL(ts.URL),
		WithPeriod(30*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	waitFor(t, 3*time.Second, func() bool {
		return ep.State() == StateErrored
	})

	select {
	case err := <-done:
		t.Fatalf("Start() returned after pipeline failure: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	var statusErr *fetch.StatusError
	if !errors.As(ep.Err(), &statusErr) {
		t.Fatalf("Err() = %v, want *fetch.StatusError", ep.Err())
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusInternalServerError)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	// terminal state survives shutdown
	if ep.State() != StateErrored {
		t.Errorf("State() = %q, want %q", ep.State(), StateErrored)
	}
}

func TestStart_StatusServer(t *testing.T) {
	ep, err := New(
		WithStrategy(StrategyLocal),
		WithPeriod(30*time.Millisecond),
		WithListenAddr("127.0.0.1:0"),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runInBackground(t, ep)
	defer stop()

	waitFor(t, 3*time.Second, func() bool {
		return ep.StatusAddr() != ""
	})
	base := "http://" + ep.StatusAddr()

	var events []map[string]any
	waitFor(t, 3*time.Second, func() bool {
		resp, err := http.Get(base + "/api/events")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		events = nil
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			return false
		}
		return len(events) >= 2
	})
	if events[0]["payload"] != "Event ----> 0" {
		t.Errorf("events[0].payload = %v, want %q", events[0]["payload"], "Event ----> 0")
	}

	resp, err := http.Get(base + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	var state map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	resp.Body.Close()
	if state["state"] != string(StateEmitting) {
		t.Errorf("state = %v, want %q", state["state"], StateEmitting)
	}
	if state["strategy"] != StrategyLocal {
		t.Errorf("strategy = %v, want %q", state["strategy"], StrategyLocal)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "eventpipe_events_published_total") {
		t.Errorf("/metrics missing eventpipe_events_published_total:\n%s", body)
	}

	if err := stop(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	ep, err := New(
		WithStrategy(StrategyLocal),
		WithListenAddr(ln.Addr().String()),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = ep.Start(ctx)
	if err == nil {
		t.Fatal("Start() expected error for busy port, got nil")
	}
	if !strings.Contains(err.Error(), "failed to start status server") {
		t.Errorf("Start() error = %v, want status server error", err)
	}
	if ep.State() != StateIdle {
		t.Errorf("State() = %q, want %q", ep.State(), StateIdle)
	}
}

func TestStart_TracerProvider(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var mu sync.Mutex
	var events []Event

	ep, err := New(
		WithStrategy(StrategyLocal),
		WithPeriod(30*time.Millisecond),
		WithTracerProvider(tp),
		WithLogger(testLogger()),
		WithEventCallback(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runInBackground(t, ep)
	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 1
	})
	if err := stop(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mu.Lock()
	traceID := events[0].TraceID
	mu.Unlock()
	if traceID == "" {
		t.Fatal("event TraceID is empty with tracing enabled")
	}

	var sawTransform bool
	for _, span := range sr.Ended() {
		if span.Name() == "eventpipe.transform" && span.SpanContext().TraceID().String() == traceID {
			sawTransform = true
		}
	}
	if !sawTransform {
		t.Error("no eventpipe.transform span recorded for the event's trace")
	}
}

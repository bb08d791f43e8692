package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jpalmerr/eventpipe/internal/fetch"
	"github.com/jpalmerr/eventpipe/internal/ticker"
)

// Strategy names accepted by [StrategyByName].
const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
)

// DefaultRemotePath is requested by [Remote] when no path is given.
const DefaultRemotePath = "get"

const localPrefix = "Event ----> "

// Strategy turns a tick into an event payload.
//
// Transform is called from a single goroutine, one tick at a time. A
// returned error terminates the subscription.
type Strategy interface {
	Name() string
	Transform(ctx context.Context, tick ticker.Tick) (string, error)
}

// Getter fetches a path relative to a fixed base URL.
type Getter interface {
	Get(ctx context.Context, path string) (fetch.Response, error)
}

// Local formats the tick sequence number. It never fails.
type Local struct{}

func (Local) Name() string { return StrategyLocal }

func (Local) Transform(_ context.Context, tick ticker.Tick) (string, error) {
	return localPrefix + strconv.FormatUint(tick.Seq, 10), nil
}

// Remote issues one GET per tick and uses the response body as the payload.
type Remote struct {
	client Getter
	path   string
}

// NewRemote creates a [Remote] strategy requesting path through client.
// An empty path means [DefaultRemotePath].
func NewRemote(client Getter, path string) *Remote {
	if path == "" {
		path = DefaultRemotePath
	}
	return &Remote{client: client, path: path}
}

func (r *Remote) Name() string { return StrategyRemote }

// Path returns the path requested on every tick.
func (r *Remote) Path() string { return r.path }

func (r *Remote) Transform(ctx context.Context, _ ticker.Tick) (string, error) {
	resp, err := r.client.Get(ctx, r.path)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// StrategyByName builds the strategy registered under name.
//
// client and path are only used by the remote strategy; client may be nil
// for "local".
func StrategyByName(name string, client Getter, path string) (Strategy, error) {
	switch name {
	case StrategyLocal:
		return Local{}, nil
	case StrategyRemote:
		if client == nil {
			return nil, errors.New("remote strategy requires an http client")
		}
		return NewRemote(client, path), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (expected %q or %q)", name, StrategyLocal, StrategyRemote)
	}
}

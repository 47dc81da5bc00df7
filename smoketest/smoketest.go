// Package smoketest checks an observer feed end to end: it connects as an
// observer, moves into the world and waits for the first status message.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"

	fwebsocket "github.com/realfan-1s/FFTOcean/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultTimeout = 10 * time.Second
)

type Request struct {
	// The endpoint to check.
	Endpoint string `json:"endpoint"`

	// The bearer token sent with the connection.
	Token string `json:"token,omitempty"`

	// Where the observer moves. Defaults to the position given in the
	// options.
	Position *mgl64.Vec3 `json:"position,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Status          string  `json:"status"`
	LatencyMilliSec float64 `json:"latency_ms"`
	LoadedObjects   int     `json:"loaded_objects"`
	Error           string  `json:"error,omitempty"`
}

type Options struct {
	Endpoint   string
	UserAgent  string
	Position   mgl64.Vec3
	SendResult func(context.Context, Results) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Error(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			position := opts.Position
			if req.Position != nil {
				position = *req.Position
			}

			res, err := RunSmokeTest(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				Token:        req.Token,
				UserAgent:    opts.UserAgent,
				Position:     position,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	Token        string
	UserAgent    string
	Position     mgl64.Vec3
	Timeout      time.Duration
}

// RunSmokeTest connects to the feed at opts.ToEndpoint, moves the observer
// to opts.Position and waits for the first status message. The latency is the
// time between the move and the status.
func RunSmokeTest(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	err := runSmokeTest(ctx, opts, &res)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("from_endpoint", opts.FromEndpoint).
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
	}

	res.Status = StatusSuccess
	return res, nil
}

func runSmokeTest(ctx context.Context, opts RunOptions, res *Results) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	origin := opts.FromEndpoint
	if origin == "" {
		origin = "http://localhost"
	}

	config, err := websocket.NewConfig(websocketURL(opts.ToEndpoint), origin)
	if err != nil {
		return errors.New("creating websocket config failed").Wrap(err)
	}
	config.Header.Set(fwebsocket.HeaderClientID, "smoketest-"+uuid.NewString())
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		config.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("dialing feed failed").Wrap(err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return errors.New("setting connection deadline failed").Wrap(err)
	}

	position := opts.Position
	start := time.Now()

	if err := fwebsocket.JSONCodec.Send(conn, fwebsocket.Msg{
		Type:      fwebsocket.MsgTypeObserverMove,
		Timestamp: start,
		Position:  &position,
	}); err != nil {
		return errors.New("sending observer move failed").Wrap(err)
	}

	for {
		var msg fwebsocket.Msg
		if err := fwebsocket.JSONCodec.Receive(conn, &msg); err != nil {
			return errors.New("receiving message failed").Wrap(err)
		}

		switch msg.Type {
		case fwebsocket.MsgTypeObjectLoad:
			res.LoadedObjects++

		case fwebsocket.MsgTypeError:
			return errors.New("feed returned an error").WithTag("code", msg.Code)

		case fwebsocket.MsgTypeStatus:
			res.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
			return nil
		}
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

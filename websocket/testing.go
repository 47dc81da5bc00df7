package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environement to unit test handlers. It returns a client
// connected to a server running the handlers created by newHandler.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	client, close := newTestingEnv(t, newHandler)
	return client, func() {
		// server handlers still log while closing.
		close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	// Hijacked connections are not tracked by the test server: handlers are
	// counted from the handshake so that closing waits for them to return.
	var handlers sync.WaitGroup
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			handlers.Add(1)
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer handlers.Done()
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(ctx, conn, handler)
		},
	})

	config, err := websocket.NewConfig(
		strings.ReplaceAll(server.URL, "http://", "ws://"),
		"http://localhost",
	)
	if err != nil {
		t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-for", "192.0.0.0")
	config.Header.Set(HeaderClientID, uuid.NewString())

	client, err := websocket.DialConfig(config)
	if err != nil {
		cancel()
		server.Close()
		t.Fatalf("error dialing web socket: %s", err)
	}

	return client, func() {
		client.Close()
		cancel()
		handlers.Wait()
		server.Close()
	}
}

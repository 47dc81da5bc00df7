package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/realfan-1s/FFTOcean/featureflag"
	"github.com/realfan-1s/FFTOcean/manifest"
	"github.com/realfan-1s/FFTOcean/streaming"
	fwebsocket "github.com/realfan-1s/FFTOcean/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

const testManifest = `{
	"name": "harbor",
	"world": {"center": [50, 0, 50], "size": [100, 40, 100]},
	"objects": [
		{"id": "crate", "asset": "props/crate.glb", "position": [50, 0, 50], "scale": [2, 2, 2]}
	]
}`

func newTestFeed(t *testing.T) *httptest.Server {
	m, err := manifest.Decode(strings.NewReader(testManifest))
	require.NoError(t, err)

	return httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			config := streaming.DefaultConfig(mgl64.Vec3{}, mgl64.Vec3{})
			config.MaxDepth = 3

			handler := &fwebsocket.ObserverHandler{
				ClientStatusInterval: 20 * time.Millisecond,
				ClientIdleTimeout:    time.Minute,
				ClientFrameDuration:  5 * time.Millisecond,
				Manifest:             m,
				Streaming:            config,
				DetectorSize:         mgl64.Vec3{20, 20, 20},
				FeatureFlags:         featureflag.New(nil),
			}
			defer handler.Close()

			fwebsocket.Handle(context.Background(), conn, handler)
		},
	})
}

func smokeTestRequest(t *testing.T, req Request) *http.Request {
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "http://localfeed", bytes.NewBuffer(body))
}

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		// prepare
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		server := newTestFeed(t)
		defer server.Close()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		// test
		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localfeed",
			Position: mgl64.Vec3{50, 0, 50},
			SendResult: func(_ context.Context, res Results) error {
				require.Equal(t, "http://localfeed", res.FromEndpoint)
				require.Equal(t, server.URL, res.ToEndpoint)
				require.Equal(t, StatusSuccess, res.Status)
				require.Greater(t, res.LatencyMilliSec, float64(0))
				require.Empty(t, res.Error)
				gotResult = true
				return nil
			},
		})

		rec := httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, smokeTestRequest(t, Request{
			Endpoint: server.URL,
			Timeout:  time.Second,
		}))
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()

		require.True(t, gotResult)
	})

	t.Run("smoke test failed - offline", func(t *testing.T) {
		// prepare
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		// test
		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localfeed",
			SendResult: func(_ context.Context, res Results) error {
				require.Equal(t, "http://localfeed", res.FromEndpoint)
				require.Equal(t, "http://127.0.0.1:1", res.ToEndpoint)
				require.Equal(t, float64(0), res.LatencyMilliSec)
				require.Equal(t, StatusFailed, res.Status)
				require.NotEmpty(t, res.Error)
				gotResult = true
				return nil
			},
		})

		rec := httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, smokeTestRequest(t, Request{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		}))
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()

		require.True(t, gotResult)
	})

	t.Run("request without endpoint is rejected", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		rec := httptest.NewRecorder()
		smokeTest.ServeHTTP(rec, smokeTestRequest(t, Request{}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed request is rejected", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localfeed", strings.NewReader("{"))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebsocketURL(t *testing.T) {
	require.Equal(t, "ws://localhost:4000", websocketURL("http://localhost:4000"))
	require.Equal(t, "wss://feed.example.com", websocketURL("https://feed.example.com"))
	require.Equal(t, "ws://localhost", websocketURL("ws://localhost"))
}

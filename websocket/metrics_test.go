package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHandlerWithMetricsMsgLatency(t *testing.T) {
	ctx := context.Background()
	respond := &testResponder{}

	t.Run("handled messages are measured", func(t *testing.T) {
		h := HandlerWithMetrics(newTestObserverHandler(t), "http://latency-handled")
		defer h.Close()

		before := testutil.CollectAndCount(wsMsgLatency)
		require.NoError(t, h.HandlePing(ctx, respond, Msg{Type: MsgTypePing}))
		require.Equal(t, before+1, testutil.CollectAndCount(wsMsgLatency))
	})

	t.Run("rejected messages are measured", func(t *testing.T) {
		h := HandlerWithMetrics(newTestObserverHandler(t), "http://latency-rejected")
		defer h.Close()

		before := testutil.CollectAndCount(wsMsgLatency)
		err := h.HandleObserverMove(ctx, respond, Msg{Type: MsgTypeObserverMove})
		require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
		require.Equal(t, before+1, testutil.CollectAndCount(wsMsgLatency))
	})

	t.Run("frames are measured", func(t *testing.T) {
		h := HandlerWithMetrics(newTestObserverHandler(t), "http://latency-frames")
		defer h.Close()

		before := testutil.CollectAndCount(wsFrameLatency)
		require.NoError(t, h.HandleFrame(ctx, respond, time.Millisecond))
		require.Equal(t, before+1, testutil.CollectAndCount(wsFrameLatency))
	})
}

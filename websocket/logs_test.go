package websocket

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/stretchr/testify/require"
)

// captureLogs routes the inline encoded log entries to the returned function.
func captureLogs() func() string {
	var mutex sync.Mutex
	var b strings.Builder

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprintln(&b, e)
	})

	return func() string {
		mutex.Lock()
		defer mutex.Unlock()
		return b.String()
	}
}

func TestHandlerWithLogsCountsMessageTypes(t *testing.T) {
	h := HandlerWithLogs(&ObserverHandler{}, time.Hour).(*handlerWithLogs)
	defer h.Close()

	h.incCounter(MsgTypeObserverMove)
	h.incCounter(MsgTypeObserverMove)
	h.incCounter(MsgTypePing)

	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()
	require.Equal(t, 2, h.counter[MsgTypeObserverMove])
	require.Equal(t, 1, h.counter[MsgTypePing])
}

func TestHandlerWithLogsLogSummary(t *testing.T) {
	h := HandlerWithLogs(&ObserverHandler{clientID: "observer-7"}, time.Hour).(*handlerWithLogs)
	defer h.Close()

	h.incCounter(MsgTypeObserverMove)
	h.incCounter(MsgTypeObserverMove)
	h.incCounter(MsgTypePing)

	output := captureLogs()
	h.logSummary()
	require.Empty(t, h.counter)

	out := output()
	require.Contains(t, out, "inbound message summary")
	require.Contains(t, out, fmt.Sprintf(`"%s":2`, MsgTypeObserverMove))
	require.Contains(t, out, fmt.Sprintf(`"%s":1`, MsgTypePing))
	require.Contains(t, out, fmt.Sprintf(`"%s":"observer-7"`, clientIDTag))
	t.Log(out)

	t.Run("empty summary is not logged", func(t *testing.T) {
		output := captureLogs()
		h.logSummary()
		require.NotContains(t, output(), "inbound message summary")
	})
}

func TestHandlerWithLogsSummaryWorker(t *testing.T) {
	var wg sync.WaitGroup
	var once sync.Once

	var mutex sync.Mutex
	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		entry := fmt.Sprint(e)
		fmt.Fprint(&b, entry)
		if strings.Contains(entry, "inbound message summary") {
			once.Do(wg.Done)
		}
	})

	wg.Add(1)
	h := HandlerWithLogs(&ObserverHandler{}, time.Millisecond).(*handlerWithLogs)
	defer h.Close()

	// No summary is logged until a message is counted.
	h.incCounter(MsgTypePing)

	wg.Wait()

	mutex.Lock()
	out := b.String()
	mutex.Unlock()

	require.Contains(t, out, MsgTypePing)
}

func TestHandlerWithLogsObserverJoin(t *testing.T) {
	h := HandlerWithLogs(newTestObserverHandler(t), time.Hour)
	defer h.Close()

	ctx := context.Background()
	respond := &testResponder{}

	t.Run("move without position is not a join", func(t *testing.T) {
		output := captureLogs()

		err := h.HandleObserverMove(ctx, respond, Msg{Type: MsgTypeObserverMove})
		require.True(t, errors.IsType(err, ErrTypeInvalidMsg))
		require.NotContains(t, output(), "observer joined the world")
	})

	t.Run("first move is logged once", func(t *testing.T) {
		output := captureLogs()

		err := h.HandleObserverMove(ctx, respond, Msg{
			Type:     MsgTypeObserverMove,
			Position: position(10, 0, 10),
		})
		require.NoError(t, err)

		err = h.HandleObserverMove(ctx, respond, Msg{
			Type:     MsgTypeObserverMove,
			Position: position(20, 0, 20),
		})
		require.NoError(t, err)

		require.Equal(t, 1, strings.Count(output(), "observer joined the world"))
	})
}

func TestHandlerWithLogsDisconnect(t *testing.T) {
	t.Run("reason is logged", func(t *testing.T) {
		h := HandlerWithLogs(&ObserverHandler{}, time.Hour)
		defer h.Close()

		output := captureLogs()
		h.HandleDisconnect(errors.New("idle connection"))

		out := output()
		require.Contains(t, out, "observer disconnected")
		require.Contains(t, out, "idle connection")
	})

	t.Run("cancellation is not a reason", func(t *testing.T) {
		h := HandlerWithLogs(&ObserverHandler{}, time.Hour)
		defer h.Close()

		output := captureLogs()
		h.HandleDisconnect(context.Canceled)

		out := output()
		require.Contains(t, out, "observer disconnected")
		require.NotContains(t, out, `"reason"`)
	})
}

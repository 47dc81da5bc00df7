package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents an observer feed handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a move of the observer.
	HandleObserverMove(ctx context.Context, respond ResponseSender, msg Msg) error

	// Advances the streaming state of the observer by dt.
	HandleFrame(ctx context.Context, respond ResponseSender, dt time.Duration) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Sends a status message to the client.
	SendStatus(ctx context.Context, respond ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The interval between each status message sent to the client.
	StatusInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// The duration of a frame.
	FrameDuration() time.Duration

	// The limiter applied to incoming messages. Nil means no limit.
	MsgLimiter() *rate.Limiter

	// Get ClientID
	GetClientID() string
}

// Handle handles the given connection until it is closed or the context is
// done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The feed handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
	disconnected   bool
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	statusTicker := time.NewTicker(h.Handler.StatusInterval())
	defer statusTicker.Stop()

	frameTicker := time.NewTicker(h.Handler.FrameDuration())
	defer frameTicker.Stop()
	lastFrame := time.Now()

	responder := responseSender{
		send: h.send,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case <-statusTicker.C:
			if err := h.Handler.SendStatus(ctx, responder); err != nil {
				h.disconnect(errors.New("sending status failed").Wrap(err))
			}

		case now := <-frameTicker.C:
			dt := now.Sub(lastFrame)
			lastFrame = now

			if err := h.Handler.HandleFrame(ctx, responder, dt); err != nil {
				h.disconnect(errors.New("handling frame failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	// the context can be done before the first iteration.
	h.handleDisconnect(ctx.Err())
	wg.Wait()
}

func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		logs.WithTag("client_id", h.Handler.GetClientID()).
			WithTag("msg_type", msg.Type).
			Warn(errors.New("send queue is full"))
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	limiter := h.Handler.MsgLimiter()

	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, ErrTypeInvalidMsg) {
				h.send(Msg{
					Type: MsgTypeError,
					Code: ErrTypeInvalidMsg,
				})
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}

			select {
			case h.receiveChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	var err error

	switch msg.Type {
	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeObserverMove:
		err = h.Handler.HandleObserverMove(ctx, responder, msg)

	default:
		err = errors.New("unknown message type").
			WithType(ErrTypeUnknownMsg).
			WithTag("msg_type", msg.Type)
	}

	switch errors.Type(err) {
	case ErrTypeUnknownMsg, ErrTypeInvalidMsg:
		responder.Send(Msg{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Code:      errors.Type(err),
		})
		return nil
	}
	return err
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	if h.disconnected {
		return
	}
	h.disconnected = true

	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}

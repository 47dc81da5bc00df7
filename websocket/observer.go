package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/realfan-1s/FFTOcean/detector"
	"github.com/realfan-1s/FFTOcean/featureflag"
	"github.com/realfan-1s/FFTOcean/manifest"
	"github.com/realfan-1s/FFTOcean/streaming"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

const (
	// The header carrying the client id chosen by the client.
	HeaderClientID = "X-Client-ID"

	closeTimeout = 5 * time.Second
)

// ObserverHandler streams the objects of a world to a connected observer.
// Each connection gets its own streaming controller, created when the
// observer sends its first position.
type ObserverHandler struct {
	// The interval between each status message sent to the connected client.
	ClientStatusInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	ClientFrameDuration time.Duration

	// The world streamed to the observer.
	Manifest *manifest.Manifest

	// The streaming configuration. World bounds are taken from the manifest.
	Streaming streaming.Config

	// The size of the box around the observer where objects are loaded.
	DetectorSize mgl64.Vec3

	// The reach of the detector quadrant test. Zero means unbounded.
	DetectorMargin float64

	// The number of messages per second accepted from the client. Zero
	// means no limit.
	MsgRate  float64
	MsgBurst int

	FeatureFlags featureflag.FeatureFlag

	conn       *websocket.Conn
	clientID   string
	controller *streaming.Controller
	detector   *detector.Box
	limiter    *rate.Limiter

	mutex        sync.Mutex
	disconnected bool
}

func (h *ObserverHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	if h.MsgRate > 0 {
		burst := h.MsgBurst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(h.MsgRate), burst)
	}
}

func (h *ObserverHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		Timestamp: time.Now(),
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *ObserverHandler) HandleObserverMove(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Position == nil {
		return errors.New("observer move without position").
			WithType(ErrTypeInvalidMsg).
			WithTag("request_id", msg.RequestID)
	}

	if h.controller == nil {
		return h.join(respond, *msg.Position)
	}

	h.detector.MoveTo(*msg.Position)
	return nil
}

// join creates the streaming controller of the observer and adds the manifest
// objects to it.
func (h *ObserverHandler) join(respond ResponseSender, position mgl64.Vec3) error {
	if h.Manifest == nil {
		return errors.New("no world manifest")
	}

	config := h.Streaming
	config.Name = h.Manifest.Name
	config.WorldCenter = h.Manifest.World.Center
	config.WorldSize = h.Manifest.World.Size

	h.FeatureFlags.IfSet(featureflag.FlagDisableEviction, func() {
		config.DisableEviction = true
	})
	h.FeatureFlags.IfSet(featureflag.FlagDisableEagerDiscovery, func() {
		config.DisableEagerDiscovery = true
	})

	controller, err := streaming.NewController(config)
	if err != nil {
		return errors.New("creating stream controller failed").Wrap(err)
	}

	options := []detector.BoxOption{detector.WithPosition(position)}
	if h.DetectorMargin > 0 {
		options = append(options, detector.WithMargin(h.DetectorMargin))
	}

	loader := &feedLoader{
		handler: h,
		respond: respond,
	}
	for _, p := range h.Manifest.Placements(loader) {
		controller.Add(p)
	}

	h.controller = controller
	h.detector = detector.NewBox(h.DetectorSize, options...)
	return nil
}

func (h *ObserverHandler) HandleFrame(ctx context.Context, respond ResponseSender, dt time.Duration) error {
	if h.controller == nil {
		return nil
	}

	if err := h.controller.Tick(ctx, dt, h.detector); err != nil {
		logs.WithTag("client_id", h.clientID).Warn(err)

		respond.Send(Msg{
			Type: MsgTypeError,
			Code: errors.Type(err),
		})
	}
	return nil
}

func (h *ObserverHandler) SendStatus(ctx context.Context, respond ResponseSender) error {
	if h.controller == nil {
		return nil
	}

	send := true
	h.FeatureFlags.IfSet(featureflag.FlagDisableStatusBroadcast, func() {
		send = false
	})
	if !send {
		return nil
	}

	stats := h.controller.Stats()
	respond.Send(Msg{
		Type:      MsgTypeStatus,
		Timestamp: time.Now(),
		Status: &StatusInfo{
			World:    h.Manifest.Name,
			Position: h.detector.Position(),
			Objects:  stats.Objects,
			Visible:  stats.Visible,
			Evicting: stats.Evicting,
			Pending:  stats.Pending,
			Resident: stats.Resident,
			Scans:    stats.Scans,
		},
	})
	return nil
}

func (h *ObserverHandler) HandleDisconnect(_ error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.disconnected = true
}

func (h *ObserverHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *ObserverHandler) Sender() Sender {
	return NewSender(h.conn)
}

func (h *ObserverHandler) Close() {
	h.mutex.Lock()
	h.disconnected = true
	h.mutex.Unlock()

	if h.controller == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := h.controller.Close(ctx); err != nil {
		logs.WithTag("client_id", h.clientID).Warn(err)
	}
	h.controller = nil
}

func (h *ObserverHandler) StatusInterval() time.Duration {
	return h.ClientStatusInterval
}

func (h *ObserverHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ObserverHandler) FrameDuration() time.Duration {
	return h.ClientFrameDuration
}

func (h *ObserverHandler) MsgLimiter() *rate.Limiter {
	return h.limiter
}

func (h *ObserverHandler) GetClientID() string {
	return h.clientID
}

// Controller returns the streaming controller of the observer. It is nil
// until the observer sends its first position.
func (h *ObserverHandler) Controller() *streaming.Controller {
	return h.controller
}

func (h *ObserverHandler) isDisconnected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.disconnected
}

// feedLoader tells the observer which assets to load and release.
type feedLoader struct {
	handler *ObserverHandler
	respond ResponseSender
}

func (l *feedLoader) LoadAsset(ctx context.Context, o manifest.Object) error {
	if l.handler.isDisconnected() {
		return nil
	}

	l.respond.Send(Msg{
		Type:      MsgTypeObjectLoad,
		Timestamp: time.Now(),
		Object: &ObjectInfo{
			ID:       o.ID,
			Asset:    o.Asset,
			Position: o.Position,
			Rotation: o.Rotation,
			Scale:    o.Scale,
		},
	})
	return nil
}

func (l *feedLoader) UnloadAsset(ctx context.Context, o manifest.Object) error {
	if l.handler.isDisconnected() {
		return nil
	}

	l.respond.Send(Msg{
		Type:      MsgTypeObjectUnload,
		Timestamp: time.Now(),
		ObjectID:  o.ID,
	})
	return nil
}

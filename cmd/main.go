package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/realfan-1s/FFTOcean/featureflag"
	whttp "github.com/realfan-1s/FFTOcean/http"
	"github.com/realfan-1s/FFTOcean/manifest"
	"github.com/realfan-1s/FFTOcean/smoketest"
	"github.com/realfan-1s/FFTOcean/streaming"
	wwebsocket "github.com/realfan-1s/FFTOcean/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The worldstream version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "worldstream_info",
		Help:        "Worldstream information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string          `cli:""        env:"WORLDSTREAM_ADDR"                  help:"Listening address for observer connections."`
	AdminAddr          string          `cli:""        env:"WORLDSTREAM_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string          `cli:""        env:"WORLDSTREAM_PUBLIC_ENDPOINT"       help:"The public endpoint where this server is reachable."`
	Manifest           string          `cli:""        env:"WORLDSTREAM_MANIFEST"              help:"The placement manifest of the streamed world."`
	AuthToken          string          `cli:""        env:"WORLDSTREAM_AUTH_TOKEN"            help:"The bearer token required to connect. Empty allows everyone."`
	LogLevel           string          `cli:""        env:"WORLDSTREAM_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"WORLDSTREAM_LOG_INDENT"            help:"Indent logs."`
	StatusInterval     time.Duration   `cli:",hidden" env:"WORLDSTREAM_STATUS_INTERVAL"       help:"Observer status message interval."`
	ClientIdleTimeout  time.Duration   `cli:",hidden" env:"WORLDSTREAM_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle observer will be disconnected."`
	FrameDuration      time.Duration   `cli:",hidden" env:"WORLDSTREAM_FRAME_DURATION"        help:"The duration of a streaming frame."`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"WORLDSTREAM_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	MsgRate            int             `cli:",hidden" env:"WORLDSTREAM_MSG_RATE"              help:"The number of messages per second accepted from an observer. Zero means no limit."`
	MsgBurst           int             `cli:",hidden" env:"WORLDSTREAM_MSG_BURST"             help:"The number of messages accepted at once from an observer."`
	Streaming          streamingConfig `cli:",hidden" env:"-"                                 help:"Streaming configuration."`
	Events             eventsConfig    `cli:",hidden" env:"-"                                 help:"Event pusher configuration."`
	FeatureFlags       []string        `cli:",hidden" env:"WORLDSTREAM_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                                 help:"Show version."`
	Help               bool            `cli:""        env:"-"                                 help:"Show help."`
}

type streamingConfig struct {
	MaxDepth       int           `cli:",hidden" env:"WORLDSTREAM_MAX_DEPTH"       help:"The number of times the world is split on the x and z axes."`
	MaxCount       int           `cli:",hidden" env:"WORLDSTREAM_MAX_COUNT"       help:"The number of out of range objects kept before evictions start."`
	UpdateTime     time.Duration `cli:",hidden" env:"WORLDSTREAM_UPDATE_TIME"     help:"The duration between two scans of the world."`
	LivingTime     time.Duration `cli:",hidden" env:"WORLDSTREAM_LIVING_TIME"     help:"The duration between two eviction drains."`
	EvictionPolicy string        `cli:",hidden" env:"WORLDSTREAM_EVICTION_POLICY" help:"Eviction drain policy (to-capacity|all)."`
	TimerGate      string        `cli:",hidden" env:"WORLDSTREAM_TIMER_GATE"      help:"When scan and eviction timers advance (dwell|displaced)."`
	LoadRate       int           `cli:",hidden" env:"WORLDSTREAM_LOAD_RATE"       help:"The number of loads and unloads per second. Zero means no limit."`
	LoadBurst      int           `cli:",hidden" env:"WORLDSTREAM_LOAD_BURST"      help:"The number of loads and unloads executed at once."`
	DetectorSize   int           `cli:",hidden" env:"WORLDSTREAM_DETECTOR_SIZE"   help:"The edge length of the box around the observer where objects are loaded."`
	DetectorMargin int           `cli:",hidden" env:"WORLDSTREAM_DETECTOR_MARGIN" help:"The reach of the detector quadrant test. Zero means unbounded."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"WORLDSTREAM_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"WORLDSTREAM_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"WORLDSTREAM_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"WORLDSTREAM_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		Manifest:           "world.json",
		LogLevel:           logs.InfoLevel.String(),
		StatusInterval:     time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		MsgRate:            60,
		MsgBurst:           10,
		Streaming: streamingConfig{
			MaxDepth:       5,
			MaxCount:       25,
			UpdateTime:     time.Second,
			LivingTime:     time.Second * 5,
			EvictionPolicy: streaming.DrainToCapacity.String(),
			TimerGate:      streaming.GateDwell.String(),
			LoadBurst:      1,
			DetectorSize:   50,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the world streaming server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	streamingConf, err := newStreamingConfig(conf.Streaming)
	if err != nil {
		logs.Fatal(err)
	}

	world, err := manifest.Load(conf.Manifest)
	if err != nil {
		logs.Fatal(errors.New("loading world manifest failed").Wrap(err))
	}

	if outside := world.OutsideWorld(); len(outside) != 0 {
		logs.WithTag("world", world.Name).
			WithTag("object_ids", outside).
			Warn(errors.New("objects are not entirely inside the world"))
	}

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "worldstream",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	if unknown := flags.Unknown(); len(unknown) != 0 {
		logs.Warn(errors.New("unknown feature flags").WithTag("flags", unknown))
	}

	edge := float64(conf.Streaming.DetectorSize)
	detectorSize := mgl64.Vec3{edge, edge, edge}

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", whttp.HandleWithCORS(http.HandlerFunc(whttp.HandleHealthCheck)))
	service.Handle("/version", whttp.HandleWithCORS(http.HandlerFunc(whttp.HandleVersion(version))))
	service.Handle("/ready", whttp.HandleWithCORS(http.HandlerFunc(whttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/world", whttp.HandleWithCORS(whttp.HandleJSON(func() any {
		return world
	})))

	service.HandleFunc("/smoke-test", whttp.VerifyAuthTokenHandler(conf.AuthToken, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Worldstream %s", version),
		Position:  world.World.Center,
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("from_endpoint", res.FromEndpoint).
				WithTag("to_endpoint", res.ToEndpoint).
				WithTag("status", res.Status).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("loaded_objects", res.LoadedObjects).
				Info("smoke test done")
			return nil
		},
	})))

	service.Handle("/", whttp.HandleWithCORS(websocket.Server{
		Handshake: whttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var oh wwebsocket.Handler = &wwebsocket.ObserverHandler{
				ClientStatusInterval: conf.StatusInterval,
				ClientIdleTimeout:    conf.ClientIdleTimeout,
				ClientFrameDuration:  conf.FrameDuration,
				Manifest:             world,
				Streaming:            streamingConf,
				DetectorSize:         detectorSize,
				DetectorMargin:       float64(conf.Streaming.DetectorMargin),
				MsgRate:              float64(conf.MsgRate),
				MsgBurst:             conf.MsgBurst,
				FeatureFlags:         flags,
			}
			h := wwebsocket.HandlerWithLogs(oh, conf.LogSummaryInterval)
			h = wwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			wwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", whttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", whttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("world", world.Name).
		WithTag("objects", len(world.Objects)).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting worldstream server")

	if err := whttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			whttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	); err != nil {
		logs.Error(err)
	}
}

func newStreamingConfig(conf streamingConfig) (streaming.Config, error) {
	policy, err := streaming.ParseEvictionPolicy(conf.EvictionPolicy)
	if err != nil {
		return streaming.Config{}, err
	}

	gate, err := streaming.ParseTimerGate(conf.TimerGate)
	if err != nil {
		return streaming.Config{}, err
	}

	c := streaming.DefaultConfig(mgl64.Vec3{}, mgl64.Vec3{})
	c.MaxDepth = conf.MaxDepth
	c.MaxCount = conf.MaxCount
	c.MaxUpdateTime = conf.UpdateTime
	c.MaxLivingTime = conf.LivingTime
	c.EvictionPolicy = policy
	c.TimerGate = gate
	c.LoadRate = float64(conf.LoadRate)
	c.LoadBurst = conf.LoadBurst
	return c, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Manifest == "" {
		return errors.New("no world manifest")
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.Streaming.DetectorSize <= 0 {
		return errors.New("detector size must be positive").
			WithTag("detector_size", conf.Streaming.DetectorSize)
	}

	if conf.Streaming.DetectorMargin < 0 {
		return errors.New("detector margin must not be negative").
			WithTag("detector_margin", conf.Streaming.DetectorMargin)
	}

	return nil
}

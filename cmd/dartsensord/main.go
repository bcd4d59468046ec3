// Command dartsensord runs the automatic dart detection engine for one
// camera: it receives frames from the video relay, rectifies them into
// canonical board space using the stored calibration, watches for the
// stillness transition that signals a landed throw, isolates the new
// dart and publishes the resulting score.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucasStrand/no-bulls-hit/calibration"
	"github.com/LucasStrand/no-bulls-hit/config"
	"github.com/LucasStrand/no-bulls-hit/emitter"
	"github.com/LucasStrand/no-bulls-hit/relay"
	"github.com/LucasStrand/no-bulls-hit/session"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the daemon YAML configuration")
	debugLogs  = flag.Bool("debug", false, "Enable debug logging")
	statsEvery = flag.Duration("stats-interval", 30*time.Second, "How often to log session counters (0 disables)")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debugLogs {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		slog.Error("dartsensord failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	tuning := config.DefaultTuning()
	if cfg.TuningPath != "" {
		tuning, err = config.LoadTuning(cfg.TuningPath)
		if err != nil {
			return err
		}
	}

	store, err := calibration.NewStore(cfg.Storage.CalibrationDB)
	if err != nil {
		return fmt.Errorf("opening calibration store: %v", err)
	}
	defer store.Close()

	engine := calibration.NewEngine(store)
	if err := engine.LoadPersisted(); err != nil {
		return fmt.Errorf("loading calibration: %v", err)
	}
	if engine.Record() != nil {
		slog.Info("calibration restored",
			"source_width", engine.Record().Source.Width,
			"source_height", engine.Record().Source.Height)
	} else {
		slog.Info("no calibration on record, detection idle until the operator calibrates")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink session.Sink
	if cfg.MQTT.Broker != "" {
		mq := emitter.New(emitter.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.InstanceID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := mq.Connect(connectCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to mqtt broker: %v", err)
		}
		defer mq.Close()
		sink = mq
	} else {
		slog.Warn("no mqtt broker configured, detections will only be logged")
	}

	sess := session.New(engine, session.NewLocator(tuning), sink, tuning)
	defer sess.Close()
	slog.Info("detection session ready", "session_id", sess.ID(), "relay", cfg.Relay.Address)

	client := relay.NewClient(cfg.Relay.Address, sess)
	client.OnDisconnect = sess
	go client.Run(ctx)

	if *statsEvery > 0 {
		go logStats(ctx, sess, *statsEvery)
	}

	sess.Run(ctx)
	slog.Info("shutting down", "session_id", sess.ID())
	return nil
}

func logStats(ctx context.Context, sess *session.Session, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := sess.Counters()
			slog.Info("session stats",
				"status", sess.Status().String(),
				"ingested", c.FramesIngested,
				"processed", c.FramesProcessed,
				"dropped", c.FramesDropped,
				"decode_errors", c.DecodeErrors,
				"detections", c.Detections,
				"no_detections", c.NoDetections)
		}
	}
}

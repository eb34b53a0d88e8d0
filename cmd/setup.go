package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/action"
	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/feed"
	"github.com/kozaktomas/face-tracker/internal/identity"
	"github.com/kozaktomas/face-tracker/internal/identity/postgres"
	"github.com/kozaktomas/face-tracker/internal/lock"
	"github.com/kozaktomas/face-tracker/internal/session"
	"github.com/kozaktomas/face-tracker/internal/transport"
)

// registerTuningFlags adds the shared tracking tunables to a command. The
// defaults shown in --help come from the embedded tuning file.
func registerTuningFlags(cmd *cobra.Command, tuning config.TuningConfig) {
	cmd.Flags().Float64("distance-threshold", tuning.DistanceThreshold, "Cosine distance accept threshold")
	cmd.Flags().Float64("acquire-confidence", tuning.AcquireConfidence, "Minimum confidence to acquire a fresh lock")
	cmd.Flags().Int("grace-period", tuning.GracePeriod, "Missed frames tolerated before the lock is released")
	cmd.Flags().Float64("dead-zone", tuning.DeadZoneRatio, "Dead zone half-width as a fraction of frame width")
	cmd.Flags().Int("cooldown", tuning.CooldownFrames, "Minimum frame gap between events of the same kind")
}

// applyTuningFlags folds explicit flag values into the tuning config.
func applyTuningFlags(cmd *cobra.Command, tuning *config.TuningConfig) {
	if cmd.Flags().Changed("distance-threshold") {
		tuning.DistanceThreshold = mustGetFloat64(cmd, "distance-threshold")
	}
	if cmd.Flags().Changed("acquire-confidence") {
		tuning.AcquireConfidence = mustGetFloat64(cmd, "acquire-confidence")
	}
	if cmd.Flags().Changed("grace-period") {
		tuning.GracePeriod = mustGetInt(cmd, "grace-period")
	}
	if cmd.Flags().Changed("dead-zone") {
		tuning.DeadZoneRatio = mustGetFloat64(cmd, "dead-zone")
	}
	if cmd.Flags().Changed("cooldown") {
		tuning.CooldownFrames = mustGetInt(cmd, "cooldown")
	}
}

// sessionConfig maps validated tuning values onto the session wiring.
func sessionConfig(cfg *config.Config) session.Config {
	t := cfg.Tuning
	return session.Config{
		Lock: lock.Config{
			DistanceThreshold: t.DistanceThreshold,
			AcquireConfidence: t.AcquireConfidence,
			GracePeriod:       t.GracePeriod,
			MinFaceWidth:      t.MinFaceWidth,
		},
		Action: action.Config{
			WindowSize:        t.WindowSize,
			BlinkDipRatio:     t.BlinkDipRatio,
			BlinkMaxDipFrames: t.BlinkMaxDipFrames,
			MoveThresholdPx:   t.MoveThresholdPx,
			MoveLagFrames:     t.MoveLagFrames,
			SmileRatio:        t.SmileRatio,
			DistanceRatio:     t.DistanceRatio,
			CooldownFrames:    t.CooldownFrames,
		},
		DeadZoneRatio:     t.DeadZoneRatio,
		FrameWidth:        cfg.Feed.FrameWidth,
		HeartbeatInterval: time.Duration(t.HeartbeatSeconds) * time.Second,
	}
}

// openStore builds the identity store: PostgreSQL when DATABASE_URL is set,
// otherwise a JSON enrollment dump.
func openStore(ctx context.Context, cfg *config.Config) (identity.Store, func(), error) {
	if cfg.Store.DatabaseURL != "" {
		pool, err := postgres.NewPool(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open identity database: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Store.EmbeddingDim); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("could not migrate identity database: %w", err)
		}
		return postgres.NewStore(pool), func() { pool.Close() }, nil
	}

	if cfg.Store.IdentitiesFile != "" {
		store, err := identity.LoadFile(cfg.Store.IdentitiesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("could not load identities file: %w", err)
		}
		return store, func() {}, nil
	}

	return nil, nil, errors.New("no identity store configured: set DATABASE_URL or IDENTITIES_FILE")
}

// loadTarget resolves the target identity before the frame loop starts. A
// missing target is a configuration error, not a tracking state.
func loadTarget(ctx context.Context, store identity.Store, name string) (*identity.Template, error) {
	target, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("target %q is not enrolled", name)
		}
		return nil, fmt.Errorf("could not load target %q: %w", name, err)
	}
	return target, nil
}

// openFeed picks the frame source: a recorded JSONL file when --frames is
// given, the websocket pipeline otherwise.
func openFeed(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger) (feed.Source, error) {
	if frames := mustGetString(cmd, "frames"); frames != "" {
		return feed.OpenJsonl(frames)
	}
	url := cfg.Feed.URL
	if cmd.Flags().Changed("feed-url") {
		url = mustGetString(cmd, "feed-url")
	}
	if url == "" {
		return nil, errors.New("no frame source configured: set FEED_URL or pass --frames")
	}
	return feed.NewWebsocketSource(url, logger.WithField("component", "feed")), nil
}

// newPublisher connects to the broker, or returns the in-memory publisher
// for dry runs.
func newPublisher(cfg *config.Config, dryRun bool, logger *logrus.Logger) (transport.Publisher, error) {
	if dryRun || cfg.Broker.URL == "" {
		logger.Info("no broker configured, movement commands stay local")
		return transport.NewMemoryPublisher(), nil
	}
	pub, err := transport.NewMqttPublisher(transport.MqttConfig{
		BrokerURL:  cfg.Broker.URL,
		ClientName: cfg.Broker.ClientName,
	}, logger.WithField("component", "mqtt"))
	if err != nil {
		return nil, err
	}
	return pub, nil
}

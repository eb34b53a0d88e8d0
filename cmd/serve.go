package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/history"
	"github.com/kozaktomas/face-tracker/internal/overlay"
	"github.com/kozaktomas/face-tracker/internal/session"
	"github.com/kozaktomas/face-tracker/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve [target-name]",
	Short: "Track an identity with the dashboard server enabled",
	Long: `Serve runs a tracking session like track does, and additionally
exposes the dashboard API: session status, an SSE event stream, manual
release, runtime tuning, an overlay snapshot and a websocket relay for
movement commands.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Dashboard listen address (overrides SERVER_ADDR)")
	serveCmd.Flags().Int("frame-height", 480, "Frame height in pixels for the snapshot overlay")
	serveCmd.Flags().String("frames", "", "Recorded JSONL frame file instead of the live feed ('-' for stdin)")
	serveCmd.Flags().String("feed-url", "", "Websocket frame feed URL (overrides FEED_URL)")
	serveCmd.Flags().String("history-dir", ".", "Directory for session history files")
	serveCmd.Flags().Bool("dry-run", false, "Do not publish to the broker")
	registerTuningFlags(serveCmd, config.Load().Tuning)
}

// snapshotRenderer adapts the overlay renderer to the dashboard snapshot
// endpoint.
type snapshotRenderer struct {
	renderer *overlay.Renderer
}

func (s *snapshotRenderer) Render(snap session.Snapshot, deadZone float64) ([]byte, error) {
	return s.renderer.Render(overlay.Snapshot{
		BBox:          snap.BBox,
		Landmarks:     snap.Landmarks,
		DeadZoneRatio: deadZone,
		Lost:          snap.Misses > 0,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	targetName := args[0]
	logger := newLogger()

	cfg := config.Load()
	applyTuningFlags(cmd, &cfg.Tuning)
	if err := cfg.Tuning.Validate(); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}
	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr = mustGetString(cmd, "addr")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	target, err := loadTarget(ctx, store, targetName)
	if err != nil {
		return err
	}

	pub, err := newPublisher(cfg, mustGetBool(cmd, "dry-run"), logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	rec, err := history.NewFileRecorder(mustGetString(cmd, "history-dir"), target.Name, time.Now())
	if err != nil {
		return fmt.Errorf("could not create history file: %w", err)
	}

	source, err := openFeed(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	sess := session.New(sessionConfig(cfg), target, pub, rec, logger)

	renderer := &snapshotRenderer{
		renderer: overlay.NewRenderer(cfg.Feed.FrameWidth, mustGetInt(cmd, "frame-height")),
	}
	server := web.NewServer(addr, sess, renderer, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	runErr := sess.Run(ctx, source)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("dashboard shutdown failed")
	}
	if err := <-serverErr; err != nil {
		logger.WithError(err).Warn("dashboard server failed")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	printHistorySummary(rec.Path())
	return nil
}

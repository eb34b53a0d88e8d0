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
	"github.com/kozaktomas/face-tracker/internal/session"
)

var trackCmd = &cobra.Command{
	Use:   "track [target-name]",
	Short: "Track an enrolled identity across a frame stream",
	Long: `Track locks onto the named enrolled identity in the incoming frame
stream, records detected actions to a session history file, and publishes
movement commands to the MQTT broker whenever the required direction
changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().String("frames", "", "Recorded JSONL frame file instead of the live feed ('-' for stdin)")
	trackCmd.Flags().String("feed-url", "", "Websocket frame feed URL (overrides FEED_URL)")
	trackCmd.Flags().String("history-dir", ".", "Directory for session history files")
	trackCmd.Flags().Bool("dry-run", false, "Do not publish to the broker")
	registerTuningFlags(trackCmd, config.Load().Tuning)
}

func runTrack(cmd *cobra.Command, args []string) error {
	targetName := args[0]
	logger := newLogger()

	cfg := config.Load()
	applyTuningFlags(cmd, &cfg.Tuning)
	if err := cfg.Tuning.Validate(); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
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
	logger.WithField("path", rec.Path()).Info("recording session history")

	source, err := openFeed(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	sess := session.New(sessionConfig(cfg), target, pub, rec, logger)
	if err := sess.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printHistorySummary(rec.Path())
	return nil
}

// printHistorySummary loads the finalized history file and prints its
// per-kind counts.
func printHistorySummary(path string) {
	log, err := history.ReadFile(path)
	if err != nil {
		fmt.Printf("Could not read session history: %v\n", err)
		return
	}
	fmt.Println(log.Summary())
}

package cmd

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/feed"
	"github.com/kozaktomas/face-tracker/internal/history"
	"github.com/kozaktomas/face-tracker/internal/session"
	"github.com/kozaktomas/face-tracker/internal/transport"
)

var replayCmd = &cobra.Command{
	Use:   "replay [target-name] [frames.jsonl]",
	Short: "Run a recorded frame file through the tracker",
	Long: `Replay runs a recorded JSONL frame file through the full tracking
pipeline without a broker, then prints the session history summary.
Useful for tuning thresholds against a captured scene.`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().String("history-dir", ".", "Directory for session history files")
	registerTuningFlags(replayCmd, config.Load().Tuning)
}

// barSource wraps a frame list and advances a progress bar per frame.
type barSource struct {
	frames []feed.Frame
	idx    int
	bar    *progressbar.ProgressBar
}

func (s *barSource) Next() (feed.Frame, error) {
	if s.idx >= len(s.frames) {
		return feed.Frame{}, feed.ErrClosed
	}
	f := s.frames[s.idx]
	s.idx++
	_ = s.bar.Add(1)
	return f, nil
}

func (s *barSource) Close() error { return nil }

// loadFrames reads the whole recording up front so the bar knows its total.
func loadFrames(path string) ([]feed.Frame, error) {
	src, err := feed.OpenJsonl(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var frames []feed.Frame
	for {
		f, err := src.Next()
		if err != nil {
			if err == feed.ErrClosed {
				return frames, nil
			}
			return nil, err
		}
		frames = append(frames, f)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	targetName := args[0]
	framesPath := args[1]
	logger := newLogger()

	cfg := config.Load()
	applyTuningFlags(cmd, &cfg.Tuning)
	if err := cfg.Tuning.Validate(); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}

	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	target, err := loadTarget(ctx, store, targetName)
	if err != nil {
		return err
	}

	frames, err := loadFrames(framesPath)
	if err != nil {
		return fmt.Errorf("could not load recording: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("recording %q contains no frames", framesPath)
	}

	rec, err := history.NewFileRecorder(mustGetString(cmd, "history-dir"), target.Name, time.Now())
	if err != nil {
		return fmt.Errorf("could not create history file: %w", err)
	}

	bar := progressbar.NewOptions(len(frames),
		progressbar.OptionSetDescription("Replaying"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	sess := session.New(sessionConfig(cfg), target, transport.NewMemoryPublisher(), rec, logger)
	if err := sess.Run(ctx, &barSource{frames: frames, bar: bar}); err != nil {
		return err
	}
	fmt.Println()

	printHistorySummary(rec.Path())
	return nil
}

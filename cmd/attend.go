package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/engine"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Run recognition over a directory of frames",
	Long: `Run recognition over a directory of frames in file name order and mark
attendance for every recognized person, at most --fps frames per second.`,
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("frames", "", "Directory with camera frames (required)")
	attendCmd.Flags().Float64("fps", constants.DefaultFrameRate, "Frames processed per second")
	_ = attendCmd.MarkFlagRequired("frames")
}

// attendSummary counts what happened over a run.
type attendSummary struct {
	frames   int
	failed   int
	faces    int
	unknown  int
	outcomes map[engine.Outcome]int
	accepted []string
}

func (s *attendSummary) add(results []engine.FaceResult) {
	for _, r := range results {
		if r.Skipped {
			continue
		}
		s.faces++
		if r.Decision == nil {
			s.unknown++
			continue
		}
		s.outcomes[r.Decision.Outcome]++
		if r.Decision.Accepted() {
			s.accepted = append(s.accepted, fmt.Sprintf("%s at %s",
				r.Label, r.Decision.Timestamp.Format(constants.TimestampLayout)))
		}
	}
}

func runAttend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	fps := mustGetFloat64(cmd, "fps")
	if fps <= 0 {
		return fmt.Errorf("--fps must be positive, got %v", fps)
	}

	paths, err := listImages(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No frames found")
		return nil
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	limiter := rate.NewLimiter(rate.Limit(fps), 1)
	summary := &attendSummary{outcomes: make(map[engine.Outcome]int)}
	bar := newProgressBar(len(paths), "Recognizing", "frames")

	for _, path := range paths {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		summary.frames++

		data, err := os.ReadFile(path)
		if err != nil {
			summary.failed++
			_ = bar.Add(1)
			continue
		}
		res, err := b.extractor.Extract(ctx, data)
		if err != nil {
			summary.failed++
			_ = bar.Add(1)
			continue
		}
		results, err := b.engine.Recognize(ctx, res.Width, res.Detections)
		summary.add(results)
		_ = bar.Add(1)
		if err != nil {
			fmt.Println()
			return fmt.Errorf("recognizing %s: %w", path, err)
		}
	}
	fmt.Println()

	fmt.Printf("\nFrames: %d (%d failed), faces: %d, unknown: %d\n",
		summary.frames, summary.failed, summary.faces, summary.unknown)
	for _, o := range []engine.Outcome{
		engine.OutcomeAccepted,
		engine.OutcomeDuplicateSession,
		engine.OutcomeOutsideWindow,
		engine.OutcomeSyncFailure,
	} {
		fmt.Printf("  %-28s %d\n", o, summary.outcomes[o])
	}
	for _, line := range summary.accepted {
		fmt.Printf("  recorded %s\n", line)
	}
	return nil
}

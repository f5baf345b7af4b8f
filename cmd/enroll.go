package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a person from a directory of photos",
	Long: `Enroll a person from a directory of photos.
Photos are processed in file name order. Photos without exactly one face are
skipped. Enrollment commits once CAPTURE_COUNT photos were accepted and
aborts when the face is already enrolled under another identity.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Identity id (required)")
	enrollCmd.Flags().String("name", "", "Person name (required)")
	enrollCmd.Flags().String("images", "", "Directory with enrollment photos (required)")
	enrollCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel extraction workers")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("images")
}

// extraction is the extractor output for one photo.
type extraction struct {
	path   string
	result *extractor.Result
	err    error
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	paths, err := listImages(mustGetString(cmd, "images"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no images found")
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	reg, err := b.engine.NewRegistration(id, name)
	if err != nil {
		return err
	}

	extractions := extractAll(ctx, b.extractor, paths, concurrency)

	bar := newProgressBar(len(extractions), "Enrolling "+name, "photos")
	var skipped int
	for _, ex := range extractions {
		_ = bar.Add(1)
		if ex.err != nil {
			skipped++
			fmt.Printf("\nSkipping %s: %v\n", ex.path, ex.err)
			continue
		}
		frame, err := extractor.EncodeJPEG(ex.result.Image)
		if err != nil {
			skipped++
			fmt.Printf("\nSkipping %s: %v\n", ex.path, err)
			continue
		}

		p, err := reg.Capture(ctx, frame, ex.result.Detections)
		switch {
		case errors.Is(err, engine.ErrNoFaceDetected), errors.Is(err, engine.ErrMultipleFacesDetected):
			skipped++
			fmt.Printf("\nSkipping %s: %v\n", ex.path, err)
			continue
		case err != nil:
			fmt.Println()
			return fmt.Errorf("enrolling %s: %w", id, err)
		}
		if p.State == engine.StateCommitted {
			_ = bar.Finish()
			fmt.Printf("\nEnrolled %s (%s) from %d photos, %d skipped\n", name, id, p.Count, skipped)
			return nil
		}
	}
	fmt.Println()

	p := reg.Progress()
	if err := reg.Cancel(); err != nil && !errors.Is(err, engine.ErrRegistrationClosed) {
		return err
	}
	return fmt.Errorf("%w: only %d of %d usable photos for %s", engine.ErrValidation, p.Count, p.Required, id)
}

// extractAll runs the extractor over every photo with bounded concurrency.
// Results keep the order of paths; per-photo failures are kept, not returned.
func extractAll(ctx context.Context, ex extractor.Extractor, paths []string, concurrency int) []extraction {
	out := make([]extraction, len(paths))
	bar := newProgressBar(len(paths), "Extracting faces", "photos")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()
			out[i].path = path
			data, err := os.ReadFile(path)
			if err != nil {
				out[i].err = err
				return nil
			}
			out[i].result, out[i].err = ex.Extract(gctx, data)
			return nil
		})
	}
	_ = g.Wait()
	fmt.Println()
	return out
}

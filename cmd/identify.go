package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "List the closest enrolled identities for every face in an image",
	Long: `List the closest enrolled identities for every face in an image.
Nothing is recorded; use attend to mark attendance.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("top", constants.DefaultNeighborCount, "Number of candidates per face")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// identifiedFace is one face of the image with its candidates.
type identifiedFace struct {
	BBox       []float64           `json:"bbox"`
	Label      string              `json:"label"`
	Candidates []database.Neighbor `json:"candidates"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	top := mustGetInt(cmd, "top")
	if top < 1 {
		top = constants.DefaultNeighborCount
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.extractor.Extract(ctx, data)
	if err != nil {
		return err
	}

	faces := make([]identifiedFace, 0, len(res.Detections))
	for _, det := range res.Detections {
		m, ok := b.engine.Match(det.Encoding)
		faces = append(faces, identifiedFace{
			BBox:       det.BBox,
			Label:      facematch.Label(m, ok),
			Candidates: b.engine.Neighbors(ctx, det.Encoding, top),
		})
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(faces)
	}

	if len(faces) == 0 {
		fmt.Println("No faces detected")
		return nil
	}
	for i, f := range faces {
		fmt.Printf("Face %d %v: %s\n", i+1, f.BBox, f.Label)
		for _, c := range f.Candidates {
			fmt.Printf("  %-12s %-30s %.4f\n", c.ID, c.Name, c.Distance)
		}
	}
	return nil
}

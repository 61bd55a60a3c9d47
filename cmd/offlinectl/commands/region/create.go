package region

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/cmd/offlinectl/cmdutil"
	"github.com/marmos91/offlinekit/pkg/apiclient"
	"github.com/marmos91/offlinekit/pkg/region"
)

var (
	createStyle      string
	createBounds     string
	createMinZoom    float64
	createMaxZoom    float64
	createPixelRatio float32
	createIdeographs bool
	createMetadata   string
	createActivate   bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a region",
	Long: `Create an offline region. The region starts paused unless --activate
is given.

Bounds are given as north,south,east,west in degrees. A negative --max-zoom
downloads up to the maximum zoom of the style sources.

Examples:
  # Create a paused region
  offlinectl region create --style https://example.com/style.json \
    --bounds 45.5,45.4,9.3,9.1 --min-zoom 0 --max-zoom 12

  # Create and start downloading, attaching client metadata
  offlinectl region create --style mapbox://styles/mapbox/outdoors-v12 \
    --bounds 46.6,46.4,8.1,7.8 --min-zoom 8 --metadata '{"name":"Jungfrau"}' --activate`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createStyle, "style", "", "Style URL (required)")
	createCmd.Flags().StringVar(&createBounds, "bounds", "", "Bounds as north,south,east,west (required)")
	createCmd.Flags().Float64Var(&createMinZoom, "min-zoom", 0, "Minimum zoom level")
	createCmd.Flags().Float64Var(&createMaxZoom, "max-zoom", -1, "Maximum zoom level (negative: style maximum)")
	createCmd.Flags().Float32Var(&createPixelRatio, "pixel-ratio", 1, "Pixel ratio of raster tiles and sprites")
	createCmd.Flags().BoolVar(&createIdeographs, "ideographs", false, "Download CJK ideograph glyph ranges")
	createCmd.Flags().StringVar(&createMetadata, "metadata", "", "Client metadata stored with the region")
	createCmd.Flags().BoolVar(&createActivate, "activate", false, "Start downloading right after creation")
	_ = createCmd.MarkFlagRequired("style")
	_ = createCmd.MarkFlagRequired("bounds")
}

// buildDefinition assembles a region definition from the create flags.
func buildDefinition(style, bounds string, minZoom, maxZoom float64, pixelRatio float32, ideographs bool) (region.Definition, error) {
	b, err := cmdutil.ParseFloatList(bounds, 4)
	if err != nil {
		return region.Definition{}, fmt.Errorf("invalid --bounds: %w", err)
	}

	if maxZoom < 0 {
		maxZoom = math.Inf(1)
	}

	def := region.Definition{
		Bounds:            region.Bounds{North: b[0], South: b[1], East: b[2], West: b[3]},
		MinZoom:           minZoom,
		MaxZoom:           maxZoom,
		StyleURL:          style,
		PixelRatio:        pixelRatio,
		IncludeIdeographs: ideographs,
	}
	if err := def.Validate(); err != nil {
		return region.Definition{}, err
	}
	return def, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	def, err := buildDefinition(createStyle, createBounds, createMinZoom, createMaxZoom, createPixelRatio, createIdeographs)
	if err != nil {
		return err
	}

	req := &apiclient.CreateRegionRequest{
		Definition: def,
		Activate:   createActivate,
	}
	if createMetadata != "" {
		req.Metadata = []byte(createMetadata)
	}

	r, err := cmdutil.GetClient().CreateRegion(req)
	if err != nil {
		return fmt.Errorf("failed to create region: %w", err)
	}

	msg := fmt.Sprintf("Region %d created (%s)", r.ID, r.State)
	return cmdutil.PrintResourceWithSuccess(os.Stdout, r, msg)
}

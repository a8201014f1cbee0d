// Command bricktest runs the brick detector on still images and prints the
// detections.
package main

import (
	"flag"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"brick-detector/internal/brick"
	"brick-detector/internal/config"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func main() {
	cfgPath := flag.String("c", "", "YAML config file (detection section is used)")
	outDir := flag.String("o", "", "Write annotated images to this directory")
	verbose := flag.Bool("v", false, "Print histogram peaks and rectangles")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Usage: bricktest [-c config.yaml] [-o outdir] [-v] <image>...")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Detection.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid detection params: %v\n", err)
		os.Exit(1)
	}
	det := brick.NewDetector(cfg.Detection)

	failed := 0
	for _, path := range flag.Args() {
		if err := detectFile(det, path, *outDir, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func detectFile(det *brick.Detector, path, outDir string, verbose bool) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	res, err := det.DetectImage(img)
	if err != nil {
		return err
	}
	defer res.Close()

	b := img.Bounds()
	fmt.Printf("=== %s (%dx%d): %d bricks ===\n", path, b.Dx(), b.Dy(), len(res.Detections))
	for i, d := range res.Detections {
		fmt.Printf("  [%d] %s\n", i, d.Label())
		if verbose {
			r := d.Rect
			fmt.Printf("      center=(%.1f,%.1f) size=%.1fx%.1f angle=%.1f\n",
				r.Center.X, r.Center.Y, r.Size.Width, r.Size.Height, r.Angle)
			fmt.Printf("      hue peak=%d (%.0f px) sat peak=%d (%.0f px)\n",
				d.Peaks.HueBin, d.Peaks.HueCount, d.Peaks.SatBin, d.Peaks.SatCount)
		}
	}
	fmt.Print("  log: ", brick.FormatLogLine(res.Detections))

	if outDir == "" {
		return nil
	}

	annotated, err := res.Annotated.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert annotated frame: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outDir, base+"_bricks.png")
	if err := imaging.Save(annotated, out); err != nil {
		return err
	}
	fmt.Printf("  wrote %s\n", out)
	return nil
}

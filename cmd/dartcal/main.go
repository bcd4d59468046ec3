// Command dartcal walks an operator through board calibration. The
// operator views the camera feed in any viewer, clicks the four outer
// double-ring reference points and types the pixel coordinates here.
// The solved homography is verified and stored in the same database
// the daemon reads on startup.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/LucasStrand/no-bulls-hit/board"
	"github.com/LucasStrand/no-bulls-hit/calibration"
)

var (
	dbPath        = flag.String("db", "calibration.db", "Path to the calibration database")
	sourceWidth   = flag.Int("source-width", 1920, "Native camera frame width in pixels")
	sourceHeight  = flag.Int("source-height", 1080, "Native camera frame height in pixels")
	displayWidth  = flag.Int("display-width", 0, "Viewer window width if the feed is shown scaled (0 = native)")
	displayHeight = flag.Int("display-height", 0, "Viewer window height if the feed is shown scaled (0 = native)")
)

// referenceLabels matches the order of board.ReferencePoints.
var referenceLabels = [4]string{
	"TOP of the board (outer edge of the double 20 ring)",
	"RIGHT of the board (outer edge of the double 6 ring)",
	"BOTTOM of the board (outer edge of the double 3 ring)",
	"LEFT of the board (outer edge of the double 11 ring)",
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Printf("❌ Calibration failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *sourceWidth <= 0 || *sourceHeight <= 0 {
		return fmt.Errorf("source dimensions must be positive, got %dx%d", *sourceWidth, *sourceHeight)
	}

	scaleX, scaleY := 1.0, 1.0
	if *displayWidth > 0 && *displayHeight > 0 {
		scaleX = float64(*sourceWidth) / float64(*displayWidth)
		scaleY = float64(*sourceHeight) / float64(*displayHeight)
	}

	store, err := calibration.NewStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := calibration.NewEngine(store)
	if err := engine.LoadPersisted(); err != nil {
		return err
	}
	if rec := engine.Record(); rec != nil {
		fmt.Printf("ℹ️  An existing calibration from %s will be replaced.\n\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("🎯 DARTBOARD CALIBRATION\n")
	fmt.Printf("========================\n\n")
	fmt.Printf("📏 Camera frame: %d × %d pixels\n", *sourceWidth, *sourceHeight)
	if scaleX != 1.0 || scaleY != 1.0 {
		fmt.Printf("🔍 Viewer window: %d × %d (clicks will be scaled %.3f × %.3f)\n",
			*displayWidth, *displayHeight, scaleX, scaleY)
	}
	fmt.Printf("\nOpen the camera feed in your viewer. For each prompt, click the\n")
	fmt.Printf("named point on the board and enter its pixel position as \"x y\".\n")
	fmt.Printf("Enter q at any prompt to abort.\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	engine.Begin(calibration.SourceDimensions{Width: *sourceWidth, Height: *sourceHeight})
	if err := collectPoints(engine, scanner, scaleX, scaleY); err != nil {
		return err
	}

	rec := engine.Record()
	fmt.Printf("\n✅ Calibration solved and stored in %s\n\n", *dbPath)
	fmt.Printf("📊 Verification (clicked point -> board space):\n")
	refs := board.ReferencePoints()
	worst := 0.0
	for i, ip := range rec.ImagePoints {
		cp, err := rec.Project(ip)
		if err != nil {
			return err
		}
		residual := math.Hypot(cp.X-refs[i].X, cp.Y-refs[i].Y)
		if residual > worst {
			worst = residual
		}
		fmt.Printf("   (%.1f, %.1f) -> (%.2f, %.2f), expected (%.0f, %.0f)\n",
			ip.X, ip.Y, cp.X, cp.Y, refs[i].X, refs[i].Y)
	}
	fmt.Printf("\n🎯 Worst residual: %.4f board units\n", worst)
	fmt.Printf("The daemon will pick up the new calibration on its next start.\n")
	return nil
}

// collectPoints prompts for clicks until the engine leaves collection
// mode, which happens only on a successful solve. A degenerate set of
// four clicks restarts the prompts; the engine has already discarded
// the points.
func collectPoints(engine *calibration.Engine, scanner *bufio.Scanner, scaleX, scaleY float64) error {
	for engine.Collecting() {
		i := engine.PointsCollected()
		fmt.Printf("📍 [%d/4] Click the %s\n", i+1, referenceLabels[i])
		p, err := readPoint(scanner, scaleX, scaleY)
		if err != nil {
			engine.Cancel()
			return err
		}

		if _, err := engine.SubmitPoint(p); err != nil {
			if errors.Is(err, calibration.ErrDegenerate) {
				fmt.Printf("\n⚠️  Those four points do not define a usable mapping.\n")
				fmt.Printf("   Re-click all four points, avoiding repeated or in-line positions.\n\n")
				continue
			}
			return err
		}
	}
	return nil
}

// readPoint reads an "x y" pair, scaling viewer coordinates to native
// frame coordinates.
func readPoint(scanner *bufio.Scanner, scaleX, scaleY float64) (calibration.ImagePoint, error) {
	for {
		fmt.Printf("   x y: ")
		if !scanner.Scan() {
			return calibration.ImagePoint{}, fmt.Errorf("input closed: %v", scanner.Err())
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "q") {
			return calibration.ImagePoint{}, fmt.Errorf("aborted by operator")
		}

		fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(fields) != 2 {
			fmt.Printf("   ⚠️  Enter two numbers separated by a space, e.g. \"812 340\"\n")
			continue
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil || x < 0 || y < 0 {
			fmt.Printf("   ⚠️  Coordinates must be non-negative numbers\n")
			continue
		}
		return calibration.ImagePoint{X: x * scaleX, Y: y * scaleY}, nil
	}
}

package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"motionToolkit/src/ik"
)

const plotSize = 4 * vg.Inch

// PlotCsv scatters column yColumn against xColumn of a table written by
// this package and saves the plot to outPath. The format follows the
// extension; .webp is encoded losslessly.
func PlotCsv(filePath string, xColumn, yColumn int, outPath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	if !scanner.Scan() {
		return fmt.Errorf("export: %s has no header", filePath)
	}
	header := strings.Split(scanner.Text(), ",")
	if xColumn < 0 || yColumn < 0 || xColumn >= len(header) || yColumn >= len(header) {
		return fmt.Errorf("export: columns %d, %d outside %d columns of %s", xColumn, yColumn, len(header), filePath)
	}

	var pts plotter.XYs
	line := 1
	for scanner.Scan() {
		line++
		row := strings.Split(scanner.Text(), ",")
		if len(row) != len(header) {
			return fmt.Errorf("export: %s:%d has %d columns, want %d", filePath, line, len(row), len(header))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[xColumn]), 64)
		if err != nil {
			return fmt.Errorf("export: %s:%d: %w", filePath, line, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[yColumn]), 64)
		if err != nil {
			return fmt.Errorf("export: %s:%d: %w", filePath, line, err)
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	p := plot.New()
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	p.Add(s)

	p.X.Label.Text = header[xColumn]
	p.Y.Label.Text = header[yColumn]

	return save(p, outPath)
}

// PlotLoss draws the per-iteration loss of an IK run and, when window > 1,
// its moving average.
func PlotLoss(losses []float64, window int, outPath string) error {
	if len(losses) == 0 {
		return fmt.Errorf("export: no losses to plot")
	}

	p := plot.New()
	p.Title.Text = "IK loss"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"

	raw := make(plotter.XYs, len(losses))
	for i, l := range losses {
		raw[i] = plotter.XY{X: float64(i), Y: l}
	}
	lossLine, err := plotter.NewLine(raw)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	lossLine.Color = plotutil.Color(0)
	p.Add(lossLine)
	p.Legend.Add("loss", lossLine)

	if avg := ik.MovingAverage(losses, window); window > 1 && len(avg) > 0 {
		smooth := make(plotter.XYs, len(avg))
		for i, l := range avg {
			smooth[i] = plotter.XY{X: float64(i + window - 1), Y: l}
		}
		avgLine, err := plotter.NewLine(smooth)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		avgLine.Color = plotutil.Color(1)
		avgLine.Dashes = plotutil.Dashes(1)
		p.Add(avgLine)
		p.Legend.Add(fmt.Sprintf("mean of %d", window), avgLine)
	}

	return save(p, outPath)
}

func save(p *plot.Plot, outPath string) error {
	if !strings.EqualFold(filepath.Ext(outPath), ".webp") {
		if err := p.Save(plotSize, plotSize, outPath); err != nil {
			return fmt.Errorf("export: save %s: %w", outPath, err)
		}
		return nil
	}

	c := vgimg.New(plotSize, plotSize)
	p.Draw(draw.New(c))

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", outPath, err)
	}
	if err := nativewebp.Encode(f, c.Image(), nil); err != nil {
		f.Close()
		return fmt.Errorf("export: encode %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", outPath, err)
	}
	return nil
}

package tg_charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"solana-wallet/internal/features/valuation"
	logging "solana-wallet/internal/infra/log"

	"github.com/fogleman/gg"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"
)

const (
	chartWidth  = 1600
	chartHeight = 900

	chartAreaLeft   = 120.0
	chartAreaRight  = 1520.0
	chartAreaTop    = 220.0
	chartAreaBottom = 780.0

	barSpacing     = 24.0
	gridLinesCount = 4

	titleX = 120.0
	titleY = 90.0
	totalY = 160.0

	titleFontSize    = 40.0
	totalFontSize    = 56.0
	barValueFontSize = 22.0
	labelFontSize    = 20.0

	barValueOffsetY = 12.0
	labelOffsetY    = 36.0

	// MaxBars caps the chart to the most valuable positions.
	MaxBars = 10

	DefaultChartsDir = "etc/charts"
)

var fontPaths = []string{
	"etc/fonts/InterVariable.ttf",
	"etc/fonts/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
}

// ShortMint turns a mint address into "So11...1112".
func ShortMint(mint string) string {
	if len(mint) <= 11 {
		return mint
	}
	return mint[:4] + "..." + mint[len(mint)-4:]
}

// TopRecords returns up to n records with the highest total value, largest first.
func TopRecords(records []valuation.Record, n int) []valuation.Record {
	sorted := append([]valuation.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalValue.GreaterThan(sorted[j].TotalValue)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type fontSetter struct {
	dc   *gg.Context
	path string
}

// set switches size when a TrueType font was found; the bitmap fallback has a single size.
func (f *fontSetter) set(size float64) {
	if f.path == "" {
		f.dc.SetFontFace(basicfont.Face7x13)
		return
	}
	if err := f.dc.LoadFontFace(f.path, size); err != nil {
		f.dc.SetFontFace(basicfont.Face7x13)
	}
}

func loadFont(dc *gg.Context) *fontSetter {
	for _, p := range fontPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := dc.LoadFontFace(p, titleFontSize); err == nil {
			logging.LogDebug("Loaded chart font", zap.String("path", p))
			return &fontSetter{dc: dc, path: p}
		}
	}
	logging.LogDebug("No TrueType font found, using bitmap font")
	return &fontSetter{dc: dc}
}

// GenerateSnapshotChart draws the most valuable positions as a bar chart and
// writes it to <outDir>/wallet_snapshot.png.
func GenerateSnapshotChart(records []valuation.Record, outDir string) (string, error) {
	priced := make([]valuation.Record, 0, len(records))
	total := decimal.Zero
	for _, r := range records {
		if r.TotalValue.IsPositive() {
			priced = append(priced, r)
			total = total.Add(r.TotalValue)
		}
	}
	if len(priced) == 0 {
		return "", fmt.Errorf("no valued positions to chart")
	}
	bars := TopRecords(priced, MaxBars)

	if outDir == "" {
		outDir = DefaultChartsDir
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.Black)
	dc.Clear()

	fonts := loadFont(dc)

	dc.SetColor(color.White)
	fonts.set(titleFontSize)
	dc.DrawString("Wallet Value", titleX, titleY)

	fonts.set(totalFontSize)
	dc.SetColor(color.RGBA{0, 255, 0, 255})
	dc.DrawString("$"+formatUSD(total), titleX, totalY)

	maxValue, _ := bars[0].TotalValue.Float64()
	if maxValue <= 0 {
		maxValue = 1
	}
	areaHeight := chartAreaBottom - chartAreaTop

	dc.SetColor(color.RGBA{64, 64, 64, 255})
	dc.SetLineWidth(1)
	for i := 0; i <= gridLinesCount; i++ {
		y := chartAreaBottom - float64(i)/float64(gridLinesCount)*areaHeight
		dc.DrawLine(chartAreaLeft, y, chartAreaRight, y)
		dc.Stroke()
	}

	barWidth := (chartAreaRight - chartAreaLeft - barSpacing*float64(len(bars)-1)) / float64(len(bars))
	if barWidth > 200 {
		barWidth = 200
	}

	for i, r := range bars {
		value, _ := r.TotalValue.Float64()
		barX := chartAreaLeft + float64(i)*(barWidth+barSpacing)
		barHeight := value / maxValue * areaHeight
		barY := chartAreaBottom - barHeight

		dc.SetColor(color.RGBA{128, 128, 128, 255})
		dc.DrawRectangle(barX, barY, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(color.White)
		fonts.set(barValueFontSize)
		valueText := "$" + formatUSD(r.TotalValue)
		w, _ := dc.MeasureString(valueText)
		dc.DrawString(valueText, barX+(barWidth-w)/2, barY-barValueOffsetY)

		fonts.set(labelFontSize)
		label := ShortMint(r.AssetID)
		w, _ = dc.MeasureString(label)
		dc.DrawString(label, barX+(barWidth-w)/2, chartAreaBottom+labelOffsetY)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create charts directory: %w", err)
	}
	filename := filepath.Join(outDir, "wallet_snapshot.png")
	if err := dc.SavePNG(filename); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		return "", fmt.Errorf("failed to stat chart file: %w", err)
	}
	if fileInfo.Size() == 0 {
		os.Remove(filename)
		return "", fmt.Errorf("chart file is empty after rendering")
	}

	logging.LogInfo("Snapshot chart generated",
		zap.String("filename", filename),
		zap.Int64("fileSize", fileInfo.Size()),
		zap.Int("barsCount", len(bars)))
	return filename, nil
}

func formatUSD(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("%.2fM", f/1_000_000)
	case f >= 10_000:
		return fmt.Sprintf("%.1fK", f/1_000)
	default:
		return v.StringFixed(2)
	}
}

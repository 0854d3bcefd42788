package chartdata

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGRenderer renders static chart images with go-chart, for mail and
// printable reports.
type PNGRenderer struct {
	Width  int
	Height int
}

var _ Renderer = PNGRenderer{}

func (r PNGRenderer) size(o Options) (int, int) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = 800
	}
	if o.MaintainAspectRatio {
		h = w / aspectRatio
	}
	if h <= 0 {
		h = 400
	}
	return w, h
}

func (r PNGRenderer) Render(w io.Writer, kind Kind, s Series, o Options) error {
	switch kind {
	case KindLine:
		return r.line(w, s, o)
	case KindDoughnut:
		return r.donut(w, s, o)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func (r PNGRenderer) line(w io.Writer, s Series, o Options) error {
	n := len(s.Labels)
	if n == 0 {
		return ErrNoData
	}
	// go-chart takes the x range from the ticks, so the unlabelled outer
	// ticks keep half a slot of margin on both sides.
	xs := make([]float64, n)
	ticks := []chart.Tick{{Value: -0.5}}
	for i, label := range s.Labels {
		xs[i] = float64(i)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: label})
	}
	ticks = append(ticks, chart.Tick{Value: float64(n) - 0.5})

	lo, hi := math.Inf(1), math.Inf(-1)
	var series []chart.Series
	for _, ds := range s.Datasets {
		seriesX, seriesY := xs, ds.Data
		if n == 1 && len(ds.Data) == 1 {
			// a lone point draws nothing, stretch it into a short segment
			seriesX = []float64{-0.25, 0.25}
			seriesY = []float64{ds.Data[0], ds.Data[0]}
		}
		for _, v := range ds.Data {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		style := chart.Style{
			StrokeColor: parseColor(ds.Style.BorderColor),
			StrokeWidth: 2,
		}
		if ds.Style.Fill {
			style.FillColor = parseColor(ds.Style.BackgroundColor)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			XValues: seriesX,
			YValues: seriesY,
			Style:   style,
		})
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	if o.BeginAtZero && lo > 0 {
		lo = 0
	}
	if hi <= lo {
		hi = lo + 1
	}
	hi += (hi - lo) * 0.1

	width, height := r.size(o)
	graph := chart.Chart{
		Title:  o.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				f, ok := v.(float64)
				if !ok {
					return ""
				}
				if o.Currency != nil {
					return o.Currency.Format(f)
				}
				return strconv.FormatFloat(f, 'f', -1, 64)
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}
	return graph.Render(chart.PNG, w)
}

func (r PNGRenderer) donut(w io.Writer, s Series, o Options) error {
	var values []chart.Value
	for _, ds := range s.Datasets {
		for i, v := range ds.Data {
			// slices are sized by magnitude, the sign stays in the label
			if v == 0 || math.IsNaN(v) {
				continue
			}
			label := ""
			if i < len(s.Labels) {
				label = s.Labels[i]
			}
			if o.Currency != nil {
				label += " " + o.Currency.Format(v)
			}
			var fill drawing.Color
			if i < len(ds.Style.BackgroundColors) {
				fill = parseColor(ds.Style.BackgroundColors[i])
			} else {
				fill = parseColor(PaletteColor(i))
			}
			values = append(values, chart.Value{
				Value: math.Abs(v),
				Label: strings.TrimSpace(label),
				Style: chart.Style{FillColor: fill, StrokeColor: drawing.ColorWhite, StrokeWidth: 2},
			})
		}
	}
	if len(values) == 0 {
		return ErrNoData
	}
	width, height := r.size(o)
	donut := chart.DonutChart{
		Title:  o.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	return donut.Render(chart.PNG, w)
}

// parseColor accepts "#rrggbb" and "rgba(r, g, b, a)" notations.
func parseColor(s string) drawing.Color {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	}
	if strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, "rgba("), ")"), ",")
		if len(parts) == 4 {
			var c [3]uint8
			for i := 0; i < 3; i++ {
				v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
				if err != nil {
					return drawing.ColorTransparent
				}
				c[i] = uint8(v)
			}
			a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil {
				return drawing.ColorTransparent
			}
			return drawing.Color{R: c[0], G: c[1], B: c[2], A: uint8(math.Round(a * 255))}
		}
	}
	return drawing.ColorTransparent
}

package chartdata

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EChartsRenderer renders interactive HTML charts with go-echarts.
type EChartsRenderer struct {
	Width  string
	Height string
	// AssetsHost overrides where the echarts script is loaded from.
	AssetsHost string
}

var _ Renderer = EChartsRenderer{}

func (r EChartsRenderer) Render(w io.Writer, kind Kind, s Series, o Options) error {
	switch kind {
	case KindLine:
		return r.line(s, o).Render(w)
	case KindDoughnut:
		return r.doughnut(s, o).Render(w)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

const defaultChartHeight = "400px"

// init sizes the container. Without a fixed aspect ratio the chart fills a
// container of fixed height; with one, a pixel width decides the height.
func (r EChartsRenderer) init(o Options) opts.Initialization {
	init := opts.Initialization{
		PageTitle:  o.Title,
		ChartID:    o.ID,
		Width:      r.Width,
		Height:     r.Height,
		AssetsHost: r.AssetsHost,
	}
	if o.Responsive && init.Width == "" {
		init.Width = "100%"
	}
	if px, ok := pixels(init.Width); ok && o.MaintainAspectRatio {
		init.Height = strconv.Itoa(px/aspectRatio) + "px"
	}
	if init.Height == "" {
		init.Height = defaultChartHeight
	}
	return init
}

func pixels(size string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(size), "px"))
	return n, err == nil && n > 0
}

func legend(position string) opts.Legend {
	l := opts.Legend{Show: true}
	switch position {
	case LegendBottom:
		l.Bottom = "0"
	default:
		l.Top = "top"
	}
	return l
}

func (r EChartsRenderer) line(s Series, o Options) *charts.Line {
	line := charts.NewLine()
	yAxis := opts.YAxis{Scale: !o.BeginAtZero}
	if o.Currency != nil {
		yAxis.AxisLabel = &opts.AxisLabel{Show: true, Formatter: opts.FuncOpts(o.Currency.JSFormatter())}
	}
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(r.init(o)),
		charts.WithLegendOpts(legend(o.LegendPosition)),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithYAxisOpts(yAxis),
	}
	if o.Title != "" {
		// legend sits on top, push the title left of it
		global = append(global, charts.WithTitleOpts(opts.Title{Title: o.Title, Left: "left"}))
	}
	line.SetGlobalOptions(global...)
	line.SetXAxis(s.Labels)

	for _, ds := range s.Datasets {
		data := make([]opts.LineData, len(ds.Data))
		for i, v := range ds.Data {
			data[i] = opts.LineData{Value: v}
		}
		series := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{Smooth: ds.Style.Tension > 0}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: ds.Style.BorderColor}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.Style.BorderColor}),
		}
		if ds.Style.Fill {
			series = append(series, charts.WithAreaStyleOpts(opts.AreaStyle{Color: ds.Style.BackgroundColor, Opacity: 1}))
		}
		line.AddSeries(ds.Label, data, series...)
	}
	return line
}

func (r EChartsRenderer) doughnut(s Series, o Options) *charts.Pie {
	pie := charts.NewPie()
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(r.init(o)),
		charts.WithLegendOpts(legend(o.LegendPosition)),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "item"}),
	}
	if o.Title != "" {
		global = append(global, charts.WithTitleOpts(opts.Title{Title: o.Title}))
	}
	pie.SetGlobalOptions(global...)

	for _, ds := range s.Datasets {
		items := make([]opts.PieData, len(ds.Data))
		for i, v := range ds.Data {
			item := opts.PieData{Value: v}
			if i < len(s.Labels) {
				item.Name = s.Labels[i]
			}
			if i < len(ds.Style.BackgroundColors) {
				item.ItemStyle = &opts.ItemStyle{Color: ds.Style.BackgroundColors[i]}
			}
			items[i] = item
		}
		pie.AddSeries(ds.Label, items, charts.WithPieChartOpts(opts.PieChart{Radius: []string{"50%", "75%"}}))
	}
	return pie
}

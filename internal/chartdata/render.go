package chartdata

import (
	"errors"
	"fmt"
	"io"
)

// Kind is the chart type tag passed to the charting library.
type Kind string

const (
	KindLine     Kind = "line"
	KindDoughnut Kind = "doughnut"
)

var (
	ErrUnsupportedKind = errors.New("unsupported chart kind")
	ErrNoData          = errors.New("nothing to draw")
)

// Legend positions.
const (
	LegendTop    = "top"
	LegendBottom = "bottom"
)

// aspectRatio is width over height for charts that keep their proportions.
const aspectRatio = 2

// Options is the declarative configuration handed over with a series.
type Options struct {
	ID             string // surface identifier
	Title          string // empty hides the title
	LegendPosition string
	Responsive     bool
	// MaintainAspectRatio derives the height from the width instead of
	// filling a fixed height.
	MaintainAspectRatio bool
	BeginAtZero         bool
	Currency            *CurrencyFormat // nil keeps plain numeric ticks
}

// Renderer draws a series on a target surface. Implementations wrap a
// third party charting library.
type Renderer interface {
	Render(target io.Writer, kind Kind, series Series, opts Options) error
}

// MonthlyOptions configures the monthly trend line.
func MonthlyOptions(currency CurrencyFormat) Options {
	return Options{
		ID:             MonthlyChartID,
		Title:          "Monthly Financial Trends",
		LegendPosition: LegendTop,
		Responsive:     true,
		BeginAtZero:    true,
		Currency:       &currency,
	}
}

// DepartmentOptions configures the department doughnut.
func DepartmentOptions(currency CurrencyFormat) Options {
	return Options{
		ID:             DepartmentChartID,
		LegendPosition: LegendBottom,
		Responsive:     true,
		Currency:       &currency,
	}
}

// Payloads are the raw JSON documents embedded in the page.
type Payloads struct {
	Months      []byte
	Departments []byte
}

// Surfaces are the drawing targets. A nil surface means the page has no
// such chart and nothing is rendered for it.
type Surfaces struct {
	Monthly    io.Writer
	Department io.Writer
}

// Adapter wires page payloads to a Renderer.
type Adapter struct {
	renderer Renderer
	currency CurrencyFormat
}

func NewAdapter(r Renderer, currency CurrencyFormat) *Adapter {
	return &Adapter{renderer: r, currency: currency}
}

// Init renders every chart whose surface is present. The two charts are
// independent: a failure on one does not prevent the other.
func (a *Adapter) Init(p Payloads, s Surfaces) error {
	var errs []error
	if s.Monthly != nil {
		series := ToMonthlySeries(ParseMonthly(p.Months))
		if err := a.renderer.Render(s.Monthly, KindLine, series, MonthlyOptions(a.currency)); err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", MonthlyChartID, err))
		}
	}
	if s.Department != nil {
		series := ToDepartmentSeries(ParseDepartments(p.Departments))
		if err := a.renderer.Render(s.Department, KindDoughnut, series, DepartmentOptions(a.currency)); err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", DepartmentChartID, err))
		}
	}
	return errors.Join(errs...)
}

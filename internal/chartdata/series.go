package chartdata

// Series is the labels plus datasets structure a chart consumes.
type Series struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one drawn series with its display style.
type Dataset struct {
	Label string    `json:"label,omitempty"`
	Data  []float64 `json:"data"`
	Style Style     `json:"style"`
}

// Style carries static display attributes. Line datasets use a single
// background; doughnut datasets carry one color per data point.
type Style struct {
	BorderColor      string   `json:"borderColor,omitempty"`
	BackgroundColor  string   `json:"backgroundColor,omitempty"`
	BackgroundColors []string `json:"backgroundColors,omitempty"`
	Tension          float64  `json:"tension,omitempty"`
	Fill             bool     `json:"fill,omitempty"`
}

// Palette is cycled by position for department slices.
var Palette = [...]string{
	"#FF6384",
	"#36A2EB",
	"#FFCE56",
	"#4BC0C0",
	"#9966FF",
	"#FF9F40",
}

var (
	incomeStyle  = Style{BorderColor: "#28a745", BackgroundColor: "rgba(40, 167, 69, 0.1)", Tension: 0.4, Fill: true}
	expenseStyle = Style{BorderColor: "#dc3545", BackgroundColor: "rgba(220, 53, 69, 0.1)", Tension: 0.4, Fill: true}
	profitStyle  = Style{BorderColor: "#007bff", BackgroundColor: "rgba(0, 123, 255, 0.1)", Tension: 0.4, Fill: true}
)

// PaletteColor returns the slice color for position i.
func PaletteColor(i int) string {
	return Palette[i%len(Palette)]
}

// ToMonthlySeries projects the records into Income, Expenses and Profit
// datasets sharing the month labels. Values are copied positionally.
func ToMonthlySeries(records []MonthlyRecord) Series {
	n := len(records)
	labels := make([]string, n)
	income := make([]float64, n)
	expense := make([]float64, n)
	profit := make([]float64, n)
	for i, r := range records {
		labels[i] = r.Month
		income[i] = float64(r.Income)
		expense[i] = float64(r.Expense)
		profit[i] = float64(r.Profit)
	}
	return Series{
		Labels: labels,
		Datasets: []Dataset{
			{Label: "Income", Data: income, Style: incomeStyle},
			{Label: "Expenses", Data: expense, Style: expenseStyle},
			{Label: "Profit", Data: profit, Style: profitStyle},
		},
	}
}

// ToDepartmentSeries builds a single dataset of net balances, one slice per
// department, colored from Palette by position.
func ToDepartmentSeries(records []DepartmentRecord) Series {
	n := len(records)
	labels := make([]string, n)
	values := make([]float64, n)
	colors := make([]string, n)
	for i, r := range records {
		labels[i] = r.Name
		values[i] = r.Net()
		colors[i] = PaletteColor(i)
	}
	return Series{
		Labels: labels,
		Datasets: []Dataset{
			{Data: values, Style: Style{BackgroundColors: colors}},
		},
	}
}

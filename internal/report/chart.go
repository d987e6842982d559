package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"thermal-annotator/internal/anomaly"
	"thermal-annotator/pkg/colorutil"
)

// WriteChart renders an HTML page with a bar chart of anomaly counts per
// class. Bars use the overlay palette in class order.
func WriteChart(w io.Writer, in anomaly.Inspection, list []anomaly.Anomaly) error {
	stats := Summarize(list)

	x := make([]string, 0, len(stats))
	y := make([]opts.BarData, 0, len(stats))
	for i, s := range stats {
		x = append(x, s.Class)
		y = append(y, opts.BarData{
			Name:      s.Class,
			Value:     s.Count,
			ItemStyle: &opts.ItemStyle{Color: colorutil.PaletteHex[i%colorutil.PaletteLen]},
		})
	}

	title := "Inspection " + in.ID
	if in.InspectionNo != "" {
		title = "Inspection " + in.InspectionNo
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Anomalies", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("transformer=%s anomalies=%d", in.TransformerNo, total(stats))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
	)
	bar.SetXAxis(x).
		AddSeries("anomalies", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func total(stats []ClassStat) int {
	n := 0
	for _, s := range stats {
		n += s.Count
	}
	return n
}

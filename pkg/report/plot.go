package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/funcscan/pkg/symtab"
)

// DefaultPlotTop is the number of bars per chart when Plot gets top <= 0.
const DefaultPlotTop = 30

const (
	chartWidth   = "100%"
	chartHeight  = "520px"
	labelRotate  = 60
	callsColor   = "#5470c6"
	definesColor = "#91cc75"
)

// Plot renders an HTML page with bar charts of the most-called and the
// most-declared function names, plus syscall charts when present.
func Plot(w io.Writer, rep *Report, top int) error {
	if top <= 0 {
		top = DefaultPlotTop
	}

	page := components.NewPage()
	page.PageTitle = "funcscan report"

	page.AddCharts(
		tallyChart("Most called functions", "call sites", symtab.Top(rep.Calls, top), callsColor),
		tallyChart("Most declared functions", "declarations", symtab.Top(rep.Functions, top), definesColor),
	)

	if len(rep.CalledSyscalls) > 0 {
		page.AddCharts(tallyChart("Called syscalls", "call sites", symtab.Top(rep.CalledSyscalls, top), callsColor))
	}

	if len(rep.DefineSyscalls) > 0 {
		page.AddCharts(tallyChart("Defined syscalls", "declarations", symtab.Top(rep.DefineSyscalls, top), definesColor))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func tallyChart(title, series string, entries []symtab.Entry, color string) *charts.Bar {
	labels := make([]string, len(entries))
	data := make([]opts.BarData, len(entries))

	for i, entry := range entries {
		labels[i] = entry.Name
		data[i] = opts.BarData{Value: entry.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("top %d", len(entries)), Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: labelRotate, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: series}),
	)

	bar.SetXAxis(labels)
	bar.AddSeries(series, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))

	return bar
}

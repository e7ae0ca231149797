package replay

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	lineWidth   = 2
	microsPerMs = 1000.0
)

// WriteTable writes one line per frame.
func WriteTable(w io.Writer, report *Report) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"#", "Step", "Grammar", "Gen", "Parse", "Mode", "Input", "Rows", "Highlight", "Error"})

	for _, f := range report.Frames {
		mode := "fresh"
		if f.Incremental {
			mode = "incremental"
		}

		tbl.AppendRow(table.Row{
			f.Index,
			f.Label,
			f.Grammar,
			f.Generation,
			f.ParseTime.String(),
			mode,
			humanize.Bytes(safeconv.MustIntToUint64(f.Bytes)),
			humanize.Comma(int64(f.Rows)),
			f.Highlighted,
			f.Err,
		})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d steps", len(report.Frames))})
	tbl.Render()
}

// WriteChart writes an HTML page charting parse time and row count per step.
func WriteChart(w io.Writer, report *Report) error {
	labels := make([]string, len(report.Frames))
	parseMs := make([]opts.LineData, len(report.Frames))
	rows := make([]opts.LineData, len(report.Frames))

	for i, f := range report.Frames {
		labels[i] = strconv.Itoa(f.Index) + " " + f.Label
		parseMs[i] = opts.LineData{Value: float64(f.ParseTime.Microseconds()) / microsPerMs}
		rows[i] = opts.LineData{Value: f.Rows}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Replay", Subtitle: "parse time and outline rows per step", Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%", Left: "center"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)
	line.SetXAxis(labels)

	line.AddSeries("Parse (ms)", parseMs,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
	line.AddSeries("Rows", rows,
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth, Type: "dashed"}),
	)

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

// Package export renders plan log records for people and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/agvfleet/core/dispatch/logging"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// Write renders records in the given format.
func Write(w io.Writer, format string, records []logging.LogRecord) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatHTML:
		return WriteChartHTML(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the records as one JSON array.
func WriteJSON(w io.Writer, records []logging.LogRecord) error {
	if records == nil {
		records = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// row is the flat per-cycle summary shared by the CSV and chart outputs.
type row struct {
	CycleID     string
	Timestamp   time.Time
	DurationMS  float64
	Robots      int
	Moves       int
	Assignments int
	Relocations int
	Error       string
}

func summarize(rec logging.LogRecord) row {
	r := row{
		CycleID:    rec.CycleID,
		Timestamp:  rec.Timestamp,
		DurationMS: float64(rec.Duration) / float64(time.Millisecond),
		Robots:     len(rec.Robots),
		Error:      rec.Error,
	}
	if rec.Plan != nil {
		r.Moves = len(rec.Plan.Moves)
		r.Assignments = len(rec.Plan.Assignments)
		r.Relocations = len(rec.Plan.Relocations)
	}
	return r
}

// WriteCSV writes one line per cycle with a header.
func WriteCSV(w io.Writer, records []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"cycle_id", "timestamp", "duration_ms", "robots", "moves", "assignments", "relocations", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		r := summarize(rec)
		line := []string{
			r.CycleID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(r.DurationMS, 'f', 3, 64),
			strconv.Itoa(r.Robots),
			strconv.Itoa(r.Moves),
			strconv.Itoa(r.Assignments),
			strconv.Itoa(r.Relocations),
			r.Error,
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChartHTML renders cycle latency and plan sizes as a line chart page.
func WriteChartHTML(w io.Writer, records []logging.LogRecord) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Dispatch cycles", Subtitle: fmt.Sprintf("%d cycles", len(records))}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count / ms"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{}),
	)

	xAxis := make([]string, 0, len(records))
	var latency, moves, assignments, aborted []opts.LineData
	for _, rec := range records {
		r := summarize(rec)
		xAxis = append(xAxis, r.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		latency = append(latency, opts.LineData{Value: r.DurationMS})
		moves = append(moves, opts.LineData{Value: r.Moves})
		assignments = append(assignments, opts.LineData{Value: r.Assignments})
		abortedValue := 0
		if rec.Aborted() {
			abortedValue = 1
		}
		aborted = append(aborted, opts.LineData{Value: abortedValue})
	}
	line.SetXAxis(xAxis).
		AddSeries("Latency (ms)", latency).
		AddSeries("Moves", moves).
		AddSeries("Assignments", assignments).
		AddSeries("Aborted", aborted)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

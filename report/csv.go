package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/weiihann/procbench/harness"
	"github.com/weiihann/procbench/metrics"
)

// meanColumns maps each averaged CSV column to its metric.
var meanColumns = []struct {
	name  string
	field metrics.Field
}{
	{"avg_wall_time", metrics.WallTime},
	{"avg_user_time", metrics.UserTime},
	{"avg_sys_time", metrics.SysTime},
	{"avg_voluntary_ctx", metrics.VoluntaryCtx},
	{"avg_involuntary_ctx", metrics.InvoluntaryCtx},
	{"avg_max_rss_kb", metrics.MaxRSSKB},
	{"avg_minor_faults", metrics.MinorFaults},
	{"avg_major_faults", metrics.MajorFaults},
}

// Header returns the CSV column names in order.
func Header() []string {
	header := []string{"program", "variant", "concurrency", "exit_code"}
	for _, c := range meanColumns {
		header = append(header, c.name)
	}

	return header
}

// FileName returns the results file name for prefix stamped with t.
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format("20060102_150405"))
}

// CSVWriter writes one row per summary, flushing each row as it goes.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header to w and returns a writer for rows.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}

	if err := cw.w.Write(Header()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	cw.w.Flush()

	if err := cw.w.Error(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return cw, nil
}

// Write appends s as one row.
func (c *CSVWriter) Write(s harness.Summary) error {
	row := []string{
		s.Program,
		string(s.Variant),
		strconv.Itoa(s.Concurrency),
		strconv.Itoa(s.ExitCode),
	}
	for _, col := range meanColumns {
		row = append(row, strconv.FormatFloat(s.Mean(col.field), 'f', -1, 64))
	}

	if err := c.w.Write(row); err != nil {
		return err
	}

	c.w.Flush()

	return c.w.Error()
}

// CreateFile creates the results file for prefix in the current directory
// and writes its header.
func CreateFile(prefix string, t time.Time) (*os.File, *CSVWriter, error) {
	f, err := os.Create(FileName(prefix, t))
	if err != nil {
		return nil, nil, fmt.Errorf("create results file: %w", err)
	}

	w, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return f, w, nil
}

// ReadCSV parses a results file written by CSVWriter.
func ReadCSV(r io.Reader) ([]harness.Summary, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header()) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var summaries []harness.Summary

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		s, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		summaries = append(summaries, s)
	}

	return summaries, nil
}

func parseRow(row []string) (harness.Summary, error) {
	concurrency, err := strconv.Atoi(row[2])
	if err != nil {
		return harness.Summary{}, fmt.Errorf("concurrency: %w", err)
	}

	exitCode, err := strconv.Atoi(row[3])
	if err != nil {
		return harness.Summary{}, fmt.Errorf("exit_code: %w", err)
	}

	s := harness.Summary{
		Program:     row[0],
		Variant:     harness.Variant(row[1]),
		Concurrency: concurrency,
		ExitCode:    exitCode,
	}

	for i, col := range meanColumns {
		v, err := strconv.ParseFloat(row[4+i], 64)
		if err != nil {
			return harness.Summary{}, fmt.Errorf("%s: %w", col.name, err)
		}

		s.Means[col.field] = v
	}

	return s, nil
}

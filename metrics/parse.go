package metrics

import (
	"math"
	"strconv"
	"strings"
)

// Labels printed by GNU time in verbose mode.
const (
	labelUserTime       = "User time (seconds):"
	labelSysTime        = "System time (seconds):"
	labelVoluntaryCtx   = "Voluntary context switches:"
	labelInvoluntaryCtx = "Involuntary context switches:"
	labelMaxRSS         = "Maximum resident set size (kbytes):"
	labelMinorFaults    = "Minor (reclaiming a frame) page faults:"
	labelMajorFaults    = "Major (requiring I/O) page faults:"
)

type lineParser struct {
	label string
	set   func(r *Record, value string)
}

var lineParsers = []lineParser{
	{labelUserTime, seconds(func(r *Record) *float64 { return &r.UserTime })},
	{labelSysTime, seconds(func(r *Record) *float64 { return &r.SysTime })},
	{labelVoluntaryCtx, count(func(r *Record) *int64 { return &r.VoluntaryCtx })},
	{labelInvoluntaryCtx, count(func(r *Record) *int64 { return &r.InvoluntaryCtx })},
	{labelMaxRSS, count(func(r *Record) *int64 { return &r.MaxRSSKB })},
	{labelMinorFaults, count(func(r *Record) *int64 { return &r.MinorFaults })},
	{labelMajorFaults, count(func(r *Record) *int64 { return &r.MajorFaults })},
}

// A value that fails to parse leaves the field untouched.
func seconds(field func(*Record) *float64) func(*Record, string) {
	return func(r *Record, s string) {
		if v, ok := parseSeconds(s); ok {
			*field(r) = v
		}
	}
}

func count(field func(*Record) *int64) func(*Record, string) {
	return func(r *Record, s string) {
		if v, ok := parseCount(s); ok {
			*field(r) = v
		}
	}
}

// Parse extracts a Record from the diagnostic output of a resource-accounting
// tool. Unknown lines are ignored and a malformed value leaves its field at
// zero; Parse never fails.
func Parse(text string) Record {
	var r Record

	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)

		for _, p := range lineParsers {
			if !strings.HasPrefix(line, p.label) {
				continue
			}

			_, value, _ := strings.Cut(line, ":")
			p.set(&r, strings.TrimSpace(value))

			break
		}
	}

	return r
}

func parseSeconds(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}

	return v, true
}

func parseCount(s string) (int64, bool) {
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}

	return int64(v), true
}

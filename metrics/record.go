// Package metrics holds the per-run resource measurements collected from a
// resource-accounting tool and the helpers that reduce them across
// processes and trials.
package metrics

// Record is one measurement sample. All numeric fields are zero when the
// accounting report did not carry them.
type Record struct {
	UserTime       float64 `json:"user_time"`
	SysTime        float64 `json:"sys_time"`
	VoluntaryCtx   int64   `json:"voluntary_ctx"`
	InvoluntaryCtx int64   `json:"involuntary_ctx"`
	MaxRSSKB       int64   `json:"max_rss_kb"`
	MinorFaults    int64   `json:"minor_faults"`
	MajorFaults    int64   `json:"major_faults"`

	// WallTime and ExitCode are filled by the batch runner, never by Parse.
	WallTime float64 `json:"wall_time"`
	ExitCode int     `json:"exit_code"`
}

// Field indexes one numeric field of a Record.
type Field int

const (
	UserTime Field = iota
	SysTime
	VoluntaryCtx
	InvoluntaryCtx
	MaxRSSKB
	MinorFaults
	MajorFaults
	WallTime

	NumFields
)

var fieldNames = [NumFields]string{
	UserTime:       "user_time",
	SysTime:        "sys_time",
	VoluntaryCtx:   "voluntary_ctx",
	InvoluntaryCtx: "involuntary_ctx",
	MaxRSSKB:       "max_rss_kb",
	MinorFaults:    "minor_faults",
	MajorFaults:    "major_faults",
	WallTime:       "wall_time",
}

// String returns the snake_case name used in reports.
func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return "unknown"
	}

	return fieldNames[f]
}

// Fields returns every numeric field in schema order.
func Fields() []Field {
	fields := make([]Field, 0, NumFields)
	for f := Field(0); f < NumFields; f++ {
		fields = append(fields, f)
	}

	return fields
}

// Vector is the numeric part of a Record laid out by Field.
type Vector [NumFields]float64

// Vector returns the numeric fields of r. ExitCode is not included.
func (r Record) Vector() Vector {
	return Vector{
		UserTime:       r.UserTime,
		SysTime:        r.SysTime,
		VoluntaryCtx:   float64(r.VoluntaryCtx),
		InvoluntaryCtx: float64(r.InvoluntaryCtx),
		MaxRSSKB:       float64(r.MaxRSSKB),
		MinorFaults:    float64(r.MinorFaults),
		MajorFaults:    float64(r.MajorFaults),
		WallTime:       r.WallTime,
	}
}

// Record converts v back to a Record with a zero exit code. Count fields
// are rounded to the nearest integer.
func (v Vector) Record() Record {
	return Record{
		UserTime:       v[UserTime],
		SysTime:        v[SysTime],
		VoluntaryCtx:   roundCount(v[VoluntaryCtx]),
		InvoluntaryCtx: roundCount(v[InvoluntaryCtx]),
		MaxRSSKB:       roundCount(v[MaxRSSKB]),
		MinorFaults:    roundCount(v[MinorFaults]),
		MajorFaults:    roundCount(v[MajorFaults]),
		WallTime:       v[WallTime],
	}
}

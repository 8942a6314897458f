package metrics

import (
	"math"

	"github.com/samber/lo"
)

// Reduction collapses the values of one field across several records.
type Reduction func(values []float64) float64

// Sum adds all values.
func Sum(values []float64) float64 {
	return lo.Sum(values)
}

// Mean is the arithmetic mean of values, or zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	return lo.Sum(values) / float64(len(values))
}

// Reduce applies reduce to every numeric field of records independently.
func Reduce(records []Record, reduce Reduction) Vector {
	var out Vector

	vectors := lo.Map(records, func(r Record, _ int) Vector {
		return r.Vector()
	})

	for _, f := range Fields() {
		out[f] = reduce(lo.Map(vectors, func(v Vector, _ int) float64 {
			return v[f]
		}))
	}

	return out
}

// MaxExitCode returns the largest exit code in records, so the result is
// zero only when every record succeeded.
func MaxExitCode(records []Record) int {
	return lo.Max(lo.Map(records, func(r Record, _ int) int {
		return r.ExitCode
	}))
}

// Total sums every numeric field of records and keeps the worst exit code.
func Total(records []Record) Record {
	total := Reduce(records, Sum).Record()
	total.ExitCode = MaxExitCode(records)

	return total
}

func roundCount(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}

	return int64(math.Round(v))
}

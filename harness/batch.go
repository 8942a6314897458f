package harness

import (
	"errors"
	"fmt"
	"os"

	"github.com/samber/lo"
)

// Kind is the shape of a batch.
type Kind int

const (
	// KindConcurrent is N independent processes started together.
	KindConcurrent Kind = iota
	// KindSimple is one process that receives N payloads.
	KindSimple
)

func (k Kind) String() string {
	switch k {
	case KindConcurrent:
		return "concurrent"
	case KindSimple:
		return "simple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrEmptyBatch is returned when a batch has nothing to run.
var ErrEmptyBatch = errors.New("batch has no invocations")

// Invocation is one process to launch. Args[0] is the program path.
type Invocation struct {
	Args []string
}

// BatchSpec is the unit of work measured by one trial.
type BatchSpec struct {
	Kind        Kind
	Invocations []Invocation
	// Preconditions lists paths that must exist before the batch may run.
	Preconditions []string
}

// Payloads returns the payload references handed to a simple batch's
// single process.
func (b BatchSpec) Payloads() []string {
	if b.Kind != KindSimple || len(b.Invocations) != 1 ||
		len(b.Invocations[0].Args) == 0 {
		return nil
	}

	return b.Invocations[0].Args[1:]
}

// MissingPaths returns the preconditions that do not exist.
func (b BatchSpec) MissingPaths() []string {
	return lo.Uniq(lo.Reject(b.Preconditions, func(p string, _ int) bool {
		_, err := os.Stat(p)
		return err == nil
	}))
}

func (b BatchSpec) validate() error {
	if len(b.Invocations) == 0 {
		return ErrEmptyBatch
	}

	for i, inv := range b.Invocations {
		if len(inv.Args) == 0 {
			return fmt.Errorf("invocation %d: empty argument vector", i)
		}
	}

	if b.Kind == KindSimple && len(b.Invocations) != 1 {
		return fmt.Errorf(
			"simple batch needs exactly 1 invocation, got %d",
			len(b.Invocations),
		)
	}

	return nil
}

package harness

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"
)

// Variant selects how a benchmark program is executed.
type Variant string

const (
	// VariantExec runs the program's standalone executable once per unit
	// of concurrency.
	VariantExec Variant = "exec"
	// VariantLib hands the shared library to the loader, loaded once.
	VariantLib Variant = "lib"
	// VariantClam hands the alternate-load shared library to the loader.
	VariantClam Variant = "clam"
)

// ErrUnknownVariant is returned for a variant tag outside KnownVariants.
var ErrUnknownVariant = errors.New("unknown variant")

// KnownVariants returns the supported variants in benchmark order.
func KnownVariants() []Variant {
	return []Variant{VariantExec, VariantLib, VariantClam}
}

// ParseVariant validates a variant tag.
func ParseVariant(tag string) (Variant, error) {
	v := Variant(tag)
	if !lo.Contains(KnownVariants(), v) {
		return "", fmt.Errorf("%w %q", ErrUnknownVariant, tag)
	}

	return v, nil
}

// Layout describes where the benchmark artifacts live on disk.
type Layout struct {
	ProgramDir string
	Loader     string
}

// ResolveExecutable returns the standalone executable path for program.
func (l Layout) ResolveExecutable(program string) string {
	return filepath.Join(l.ProgramDir, program+"_exec")
}

// ResolveLibrary returns the shared library path for program built for
// the given variant.
func (l Layout) ResolveLibrary(program string, v Variant) string {
	return filepath.Join(l.ProgramDir, fmt.Sprintf("%s_%s.so", program, v))
}

// Configure builds the batch that runs program under variant with the
// given number of concurrent units of work.
func (l Layout) Configure(
	program string,
	v Variant,
	concurrency int,
) (BatchSpec, error) {
	if concurrency < 1 {
		return BatchSpec{}, fmt.Errorf(
			"concurrency must be at least 1, got %d", concurrency,
		)
	}

	switch v {
	case VariantExec:
		exe := l.ResolveExecutable(program)

		return BatchSpec{
			Kind: KindConcurrent,
			Invocations: lo.Times(concurrency, func(int) Invocation {
				return Invocation{Args: []string{exe}}
			}),
			Preconditions: []string{exe},
		}, nil

	case VariantLib, VariantClam:
		lib := l.ResolveLibrary(program, v)

		args := make([]string, 0, concurrency+1)
		args = append(args, l.Loader)
		args = append(args, lo.Times(concurrency, func(int) string {
			return lib
		})...)

		return BatchSpec{
			Kind:          KindSimple,
			Invocations:   []Invocation{{Args: args}},
			Preconditions: []string{l.Loader, lib},
		}, nil

	default:
		return BatchSpec{}, fmt.Errorf("%w %q", ErrUnknownVariant, v)
	}
}

//go:build property

package planner

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/weftworks/weft/internal/types"
)

// TestPlannerProperties validates the planner's invariants over generated
// path sets.
func TestPlannerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	segment := gen.RegexMatch(`[a-z][a-z0-9]{0,5}`)

	genPath := gopter.CombineGens(
		gen.SliceOfN(3, segment),
		segment,
	).Map(func(vals []interface{}) string {
		dirs := vals[0].([]string)
		base := vals[1].(string)
		return "/" + strings.Join(dirs, "/") + "/" + base + ".html"
	})

	genPaths := gen.SliceOf(genPath)

	// Property: output watch points partition the input set exactly.
	properties.Property("covered paths partition the input", prop.ForAll(
		func(paths []string) bool {
			points := Plan(paths)

			unique := make(map[string]struct{})
			for _, p := range paths {
				unique[filepath.Clean(p)] = struct{}{}
			}

			covered := make(map[string]int)
			for _, point := range points {
				for _, path := range point.CoveredPaths {
					covered[path]++
				}
			}
			if len(covered) != len(unique) {
				return false
			}
			for path := range unique {
				if covered[path] != 1 {
					return false
				}
			}
			return true
		},
		genPaths,
	))

	// Property: a directory point always covers at least two files and a
	// file point exactly one.
	properties.Property("point kind matches covered count", prop.ForAll(
		func(paths []string) bool {
			for _, point := range Plan(paths) {
				switch point.Kind {
				case types.WatchDirectory:
					if len(point.CoveredPaths) < 2 {
						return false
					}
				case types.WatchFile:
					if len(point.CoveredPaths) != 1 || point.Path != point.CoveredPaths[0] {
						return false
					}
				}
			}
			return true
		},
		genPaths,
	))

	// Property: planning is insensitive to input order.
	properties.Property("deterministic across input order", prop.ForAll(
		func(paths []string) bool {
			forward := Plan(paths)

			reversed := make([]string, len(paths))
			for i, p := range paths {
				reversed[len(paths)-1-i] = p
			}
			backward := Plan(reversed)

			if len(forward) != len(backward) {
				return false
			}
			for i := range forward {
				if forward[i].Path != backward[i].Path || forward[i].Kind != backward[i].Kind {
					return false
				}
			}
			return true
		},
		genPaths,
	))

	properties.TestingRun(t)
}

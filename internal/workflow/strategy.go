package workflow

import "github.com/codescope/codescope/internal/discovery"

// Strategy names how the analysis stage is organized.
type Strategy string

const (
	// StrategySingle runs one sequential branch; chosen when only one
	// language category has files.
	StrategySingle Strategy = "single-language"
	// StrategyParallel runs one branch per language category.
	StrategyParallel Strategy = "multi-language-parallel"
)

// Plan is the chosen strategy plus the branches it will run, in category
// declaration order.
type Plan struct {
	Strategy   Strategy
	Categories []string
}

// ChoosePlan picks the strategy for a manifest. Parallel branches need more
// than one active category and at least parallelThreshold files overall;
// tiny manifests are not worth the branch overhead. The choice depends only
// on the manifest counts and the threshold, so the same inputs always yield
// the same plan.
func ChoosePlan(m *discovery.Manifest, parallelThreshold int) Plan {
	active := m.ActiveCategories()
	strategy := StrategySingle
	if len(active) > 1 && m.TotalFiles() >= parallelThreshold {
		strategy = StrategyParallel
	}
	return Plan{Strategy: strategy, Categories: active}
}

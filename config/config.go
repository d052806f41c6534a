// Package config holds the optimizer's tunables: buffer/sort-buffer sizes,
// selectivity floors, and the OPT_LEVEL flag bits described in spec.md §6.
package config

import (
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// OptLevel bits, mirroring OPT_LEVEL(level)/PLAN_DUMP_ENABLED/etc. in the
// original optimizer.h.
type OptLevel int

const (
	// OptDisabled turns optimization off entirely (level 0): the planner
	// always returns WorstPlan.
	OptDisabled OptLevel = 0
	// OptEnabled is the default cost-based search.
	OptEnabled OptLevel = 1
	// OptDumpSimple requests a one-line plan summary alongside the result.
	OptDumpSimple OptLevel = 0x100
	// OptDumpDetailed requests the full plan dump.
	OptDumpDetailed OptLevel = 0x200
)

// Level returns the base optimization level, masking out the dump bits.
func (o OptLevel) Level() int { return int(o) & 0xff }

// Enabled reports OPTIMIZATION_ENABLED(level).
func (o OptLevel) Enabled() bool { return o.Level() != 0 }

// DumpEnabled reports PLAN_DUMP_ENABLED(level).
func (o OptLevel) DumpEnabled() bool { return int(o) >= 0x100 }

// SimpleDump reports SIMPLE_DUMP(level).
func (o OptLevel) SimpleDump() bool { return int(o)&0x100 != 0 }

// DetailedDump reports DETAILED_DUMP(level).
func (o OptLevel) DetailedDump() bool { return int(o)&0x200 != 0 }

// Config holds every tunable named or implied by spec.md §6.
type Config struct {
	OptLevel OptLevel `yaml:"opt_level"`

	// BufferPoolPages bounds the buffer-pool model used by the index scan
	// cost formula (spec.md §4.2).
	BufferPoolPages int `yaml:"buffer_pool_pages"`
	// SortBufferPages bounds whether an in-memory sort is charged the
	// CPU-only N*log2(N) term or the spill-to-disk term (spec.md §4.2).
	SortBufferPages int `yaml:"sort_buffer_pages"`

	// Selectivity floors, all defaults drawn from spec.md §4.2.
	DefaultEqSelectivity     float64 `yaml:"default_eq_selectivity"`
	NullSelectivity          float64 `yaml:"null_selectivity"`
	ExistsSelectivity        float64 `yaml:"exists_selectivity"`
	LikeSelectivity          float64 `yaml:"like_selectivity"`
	BetweenSelectivity       float64 `yaml:"between_selectivity"`
	RangeRowSelectivityCap   float64 `yaml:"range_row_selectivity_cap"`
	SubqueryCardFallback     float64 `yaml:"subquery_card_fallback"`

	// MergeJoinEnabled toggles generation of merge-join candidates
	// (spec.md §6 MERGE_JOIN_ENABLED).
	MergeJoinEnabled bool `yaml:"merge_join_enabled"`
	// CollectExecStats toggles per-query profiling timers during search
	// (spec.md §6 COLLECT_EXEC_STATS).
	CollectExecStats bool `yaml:"collect_exec_stats"`
	// NoMultiRangeOpt disables MRO generation wholesale, independent of
	// the per-query NO_MULTI_RANGE_OPT hint.
	NoMultiRangeOpt bool `yaml:"no_multi_range_opt"`

	// FudgeFactor multiplies index object-fetch I/O when the scan is not
	// full-range (spec.md §4.2).
	FudgeFactor float64 `yaml:"fudge_factor"`
	// CPUWeight is QO_CPU_WEIGHT from the original cost model.
	CPUWeight float64 `yaml:"cpu_weight"`
	// TempSetupCost is the fixed cost charged when materializing a sort.
	TempSetupCost float64 `yaml:"temp_setup_cost"`
	// NongroupedScanCost is the per-row outer-join inner re-scan penalty.
	NongroupedScanCost float64 `yaml:"nongrouped_scan_cost"`

	// TablesAtATime narrows the join-enumeration window as the node count
	// grows (spec.md §4.3.2): keys are thresholds, values are the window.
	TablesAtATime map[int]int `yaml:"-"`
}

// Default returns the tunables baked into the original engine's constants.
func Default() *Config {
	return &Config{
		OptLevel:               OptEnabled,
		BufferPoolPages:        4096,
		SortBufferPages:        1024,
		DefaultEqSelectivity:   0.001,
		NullSelectivity:        0.01,
		ExistsSelectivity:      0.1,
		LikeSelectivity:        0.1,
		BetweenSelectivity:     0.01,
		RangeRowSelectivityCap: 0.5,
		SubqueryCardFallback:   10,
		MergeJoinEnabled:       true,
		CollectExecStats:       false,
		NoMultiRangeOpt:        false,
		FudgeFactor:            0.7,
		CPUWeight:              0.0025,
		TempSetupCost:          5,
		NongroupedScanCost:     0.04,
		TablesAtATime: map[int]int{
			25: 4,
			37: 3,
			38: 2,
		},
	}
}

// TablesAtATimeFor returns the join-enumeration window width for a
// partition containing n remaining nodes, per spec.md §4.3.2.
func (c *Config) TablesAtATimeFor(n int) int {
	best := n // no narrowing below the total node count
	for threshold, window := range c.TablesAtATime {
		if n >= threshold && window < best {
			best = window
		}
	}
	return best
}

// LoadYAML reads tunables from a YAML file, leaving unset fields at their
// Default() values.
func LoadYAML(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverlay merges a loosely-typed session-variable overlay (the same
// shape the teacher uses for `SET` variables) onto cfg, coercing values with
// cast so that e.g. a string "2" overlaying opt_level still works.
func (c *Config) ApplyOverlay(overlay map[string]interface{}) error {
	for k, v := range overlay {
		switch k {
		case "opt_level":
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			c.OptLevel = OptLevel(n)
		case "buffer_pool_pages":
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			c.BufferPoolPages = n
		case "sort_buffer_pages":
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			c.SortBufferPages = n
		case "merge_join_enabled":
			b, err := cast.ToBoolE(v)
			if err != nil {
				return err
			}
			c.MergeJoinEnabled = b
		case "collect_exec_stats":
			b, err := cast.ToBoolE(v)
			if err != nil {
				return err
			}
			c.CollectExecStats = b
		case "no_multi_range_opt":
			b, err := cast.ToBoolE(v)
			if err != nil {
				return err
			}
			c.NoMultiRangeOpt = b
		}
	}
	return nil
}

// Package optimizer wires query-graph construction, join/access-path
// search, and XASL generation into the single entry point described in
// spec.md §7, fronted by the plan cache of spec.md §5.
package optimizer

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cubrid/queryopt/cache"
	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/planner"
	"github.com/cubrid/queryopt/qg"
	"github.com/cubrid/queryopt/qghash"
	"github.com/cubrid/queryopt/qoerr"
	"github.com/cubrid/queryopt/xasl"
)

// Result is the §7 outcome of one Optimize call: a usable XASL tree
// (freshly generated or served from cache), or the worst-case plan when
// optimization is off or the optimizer declines the construct. A hard
// failure is returned as an error instead and carries no Result.
type Result struct {
	// Tree is nil when Worst is true.
	Tree    *xasl.Node
	Worst   bool
	Classes map[string]bool
	// Entry is the cache entry backing Tree, present whenever Tree is,
	// so the caller can DelRef it once execution is done.
	Entry *cache.PlanEntry
	// TraceID identifies this optimization in the log and plan dump, so a
	// caller can correlate an EXPLAIN dump with the log lines it came
	// from.
	TraceID string
}

// Optimizer binds one cost engine to a config, plus the plan cache in
// front of it. A fresh Planner is built per Optimize call, tagged with
// that call's trace id, since a Planner is a cheap, stateless-across-
// calls wrapper around the shared cost engine. It is safe for concurrent
// use.
type Optimizer struct {
	cfg *config.Config
	cse *cost.Engine
	log *logrus.Entry

	plans *cache.PlanCache
}

// New builds an Optimizer bound to cfg. log may be nil.
func New(cfg *config.Config, log *logrus.Entry) *Optimizer {
	return &Optimizer{
		cfg:   cfg,
		cse:   cost.NewEngine(cfg),
		log:   log,
		plans: cache.NewPlanCache(),
	}
}

// Plans returns the optimizer's plan cache, so a caller can wire it into
// a Transaction's Cleanup on commit (spec.md §5).
func (o *Optimizer) Plans() *cache.PlanCache { return o.plans }

// Optimize runs q through query-graph construction, search, and XASL
// generation, serving a cached tree when the normalized query and query
// graph shape match a live entry. cat supplies catalog statistics. Every
// call is tagged with a fresh trace id, carried on every log line and the
// plan dump it produces.
func (o *Optimizer) Optimize(q *qg.ParsedQuery, cat qg.Catalog) (Result, error) {
	traceID := uuid.NewString()
	entry := o.log
	if entry != nil {
		entry = entry.WithField("trace_id", traceID)
	}

	env, err := qg.Build(q, cat, entry)
	if err != nil {
		return o.classify(entry, traceID, err, "building query graph")
	}

	key, err := qghash.NewKey(q, env)
	if err != nil {
		return o.classify(entry, traceID, err, "hashing plan-cache key")
	}
	if e, ok := o.plans.Get(key); ok {
		return Result{Tree: e.Tree, Classes: e.Classes, Entry: e, TraceID: traceID}, nil
	}

	if !o.cfg.OptLevel.Enabled() {
		return Result{Worst: true, TraceID: traceID}, nil
	}

	pl := planner.NewPlanner(o.cfg, o.cse, entry)
	chosen, err := pl.Search(env)
	if err != nil {
		return o.classify(entry, traceID, err, "searching plan space")
	}
	if chosen.IsWorst() {
		return Result{Worst: true, TraceID: traceID}, nil
	}
	o.dump(entry, chosen)

	tree, err := xasl.Generate(env, cat, chosen)
	if err != nil {
		return o.classify(entry, traceID, err, "generating XASL")
	}

	classes := referencedClasses(env)
	e := o.plans.Put(key, tree, classes)
	return Result{Tree: tree, Classes: classes, Entry: e, TraceID: traceID}, nil
}

// dump logs the chosen plan at the level requested by OPT_LEVEL's dump
// bits (spec.md §6): a one-line summary, or the full indented tree. entry
// already carries this call's trace_id field, so it appears on whichever
// line is emitted.
func (o *Optimizer) dump(entry *logrus.Entry, p *plan.Plan) {
	if entry == nil || !o.cfg.OptLevel.DumpEnabled() {
		return
	}
	if o.cfg.OptLevel.DetailedDump() {
		entry.Debug("\n" + (plan.TextFormatter{}).Format(p))
		return
	}
	entry.WithFields(logrus.Fields{
		"cost": p.Cost.Total(), "cardinality": p.Cost.Cardinality,
	}).Debug("plan chosen")
}

// classify turns a pipeline failure into the §7 outcome it maps to: a
// resource error always propagates as Fail, while an invariant violation
// or unsupported construct downgrades to the worst-case plan.
func (o *Optimizer) classify(entry *logrus.Entry, traceID string, err error, stage string) (Result, error) {
	if qoerr.ClassOf(err) == qoerr.KindResource {
		return Result{}, err
	}
	if entry != nil {
		entry.WithError(err).WithField("stage", stage).Warn("optimization declined, falling back to worst-case plan")
	}
	return Result{Worst: true, TraceID: traceID}, nil
}

func referencedClasses(env *qg.Env) map[string]bool {
	out := make(map[string]bool, len(env.Nodes))
	for _, n := range env.Nodes {
		out[n.Class] = true
	}
	return out
}

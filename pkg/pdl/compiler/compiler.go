// Package compiler orchestrates the full pipeline (§2 Data flow):
// declare types and objects, instantiate the parsed instance into a Task,
// drive the Simplifier to its fixed point, generate hash keys, precompute
// tables and analyze the task, then serialize the result. It is the single
// place that owns pipeline-wide configuration (compiler.Options) and
// structured logging; every earlier package stays free of both.
package compiler

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/prost-planner/rddlc/internal/inputmodel"
	"github.com/prost-planner/rddlc/internal/rng"
	"github.com/prost-planner/rddlc/pkg/pdl/hashkey"
	"github.com/prost-planner/rddlc/pkg/pdl/instantiate"
	"github.com/prost-planner/rddlc/pkg/pdl/precompute"
	"github.com/prost-planner/rddlc/pkg/pdl/serialize"
	"github.com/prost-planner/rddlc/pkg/pdl/simplify"
	"github.com/prost-planner/rddlc/pkg/pdl/symtab"
	"github.com/prost-planner/rddlc/pkg/pdl/task"
)

// Result is everything a successful Compile produces, for a caller that
// wants more than the serialized bytes (the CLI logs a few of these
// fields; tests assert on them directly).
type Result struct {
	Task     *task.Task
	Analysis *precompute.AnalysisResult
}

// Compile runs the whole pipeline against domain and writes the serialized
// Task to w. log may be nil, in which case a disabled logger is used (so
// callers that don't care about pipeline tracing don't have to construct
// one).
func Compile(domain *inputmodel.Domain, opts Options, w io.Writer, log *logrus.Entry) (*Result, error) {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(l)
	}
	log = log.WithField("run", opts.RunID)

	symbols, err := buildSymtab(domain)
	if err != nil {
		return nil, &schemaError{cause: errors.Wrap(err, "declaring types and objects")}
	}

	log.WithField("phase", "instantiate").Info("pipeline phase start")
	t, err := instantiate.Run(domain, symbols)
	if err != nil {
		return nil, &schemaError{cause: errors.Wrap(err, "instantiate")}
	}
	log.WithFields(logrus.Fields{
		"phase":         "instantiate",
		"stateFluents":  len(t.StateFluents),
		"actionFluents": len(t.ActionFluents),
	}).Info("pipeline phase done")

	log.WithField("phase", "simplify").Info("pipeline phase start")
	iterations, err := simplify.Run(t, simplify.Options{SynthesizeFDR: opts.SynthesizeFDR, Enumeration: opts.Enumeration})
	if err != nil {
		return nil, &semanticError{cause: errors.Wrap(err, "simplify")}
	}
	log.WithFields(logrus.Fields{
		"phase":        "simplify",
		"iterations":   iterations,
		"actionStates": len(t.ActionStates),
	}).Info("pipeline phase done")

	log.WithField("phase", "hashkey").Info("pipeline phase start")
	hashkey.Run(t)
	if !t.StateHashingEnabled {
		log.WithField("phase", "hashkey").Warn((&resourceError{cause: errors.New("perfect state hashing disabled: hash-base product overflowed")}).Error())
	}
	if !t.KleeneHashingEnabled {
		log.WithField("phase", "hashkey").Warn((&resourceError{cause: errors.New("Kleene state hashing disabled: hash-base product overflowed")}).Error())
	}
	log.WithField("phase", "hashkey").Info("pipeline phase done")

	log.WithField("phase", "precompute").Info("pipeline phase start")
	if err := precompute.FillParallel(t, opts.PrecomputeWorkers); err != nil {
		return nil, errors.Wrap(err, "precompute")
	}
	analysis, err := precompute.Analyze(t, rng.New(opts.Seed), opts.analyzerOptions(t.Horizon))
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}
	log.WithFields(logrus.Fields{
		"phase":                      "precompute",
		"encounteredStates":          analysis.EncounteredStatesCount,
		"rewardLockDetected":         analysis.RewardLockDetected,
		"unreasonableActionDetected": analysis.UnreasonableActionDetected,
	}).Info("pipeline phase done")

	log.WithField("phase", "serialize").Info("pipeline phase start")
	if err := serialize.WriteTask(w, t, serialize.Options{RunID: opts.RunID}); err != nil {
		return nil, errors.Wrap(err, "serialize")
	}
	log.WithField("phase", "serialize").Info("pipeline phase done")

	return &Result{Task: t, Analysis: analysis}, nil
}

// buildSymtab declares every type (resolving parent references across
// passes, since domain.Types need not be listed in parent-before-child
// order) and every object in domain into a fresh symtab.Table, ready for
// instantiate.Run.
func buildSymtab(domain *inputmodel.Domain) (*symtab.Table, error) {
	tab := symtab.NewTable()
	pending := append([]inputmodel.TypeDecl(nil), domain.Types...)
	for len(pending) > 0 {
		progressed := false
		var next []inputmodel.TypeDecl
		for _, td := range pending {
			var parent *symtab.Type
			if td.Parent != "" {
				p, err := tab.Type(td.Parent)
				if err != nil {
					next = append(next, td)
					continue
				}
				parent = p
			}
			if _, err := tab.DeclareType(td.Name, parent); err != nil {
				return nil, errors.Wrapf(err, "type %q", td.Name)
			}
			progressed = true
			typ, err := tab.Type(td.Name)
			if err != nil {
				return nil, err
			}
			for _, o := range td.Objects {
				if _, err := tab.DeclareObject(o, typ); err != nil {
					return nil, errors.Wrapf(err, "object %q", o)
				}
			}
		}
		if !progressed {
			return nil, errors.Errorf("unresolvable type hierarchy: %d type(s) reference an unknown parent", len(next))
		}
		pending = next
	}
	return tab, nil
}

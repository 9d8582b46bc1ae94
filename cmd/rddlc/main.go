// Package main implements rddlc, the offline compiler's CLI entry point
// (§6 External Interfaces). It is a thin wrapper: load the domain and
// problem files, merge them into a single parsed instance, run
// compiler.Compile, and write the serialized task under targetDir. Every
// decision that matters lives in the compiler package; this file only
// wires flags to Options and files to io.Reader/io.Writer.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prost-planner/rddlc/internal/inputmodel"
	"github.com/prost-planner/rddlc/pkg/pdl/compiler"
)

var (
	seed          int64
	verbose       bool
	synthesizeFDR bool
	workers       int
)

var rootCmd = &cobra.Command{
	Use:   "rddlc domainFile problemFile targetDir",
	Short: "rddlc compiles a PDL domain/problem pair into a ready-to-run task",
	Args:  cobra.ExactArgs(3),
	RunE:  runCompile,
}

func init() {
	rootCmd.Flags().Int64VarP(&seed, "seed", "s", time.Now().UnixNano(), "random seed for the Task Analyzer's state walks")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every pipeline phase at debug level")
	rootCmd.Flags().BoolVar(&synthesizeFDR, "fdr", true, "synthesize finite-domain representations where mutexes allow it")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "parallel precompute worker count (<=1 runs sequentially)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	domainFile, problemFile, targetDir := args[0], args[1], args[2]

	runID := uuid.NewString()
	log := newLogger(runID)

	domain, err := loadInstance(domainFile, problemFile)
	if err != nil {
		return err
	}

	opts := compiler.DefaultOptions()
	opts.Seed = seed
	opts.SynthesizeFDR = synthesizeFDR
	opts.PrecomputeWorkers = workers
	opts.RunID = runID

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target dir %q: %w", targetDir, err)
	}
	outPath := filepath.Join(targetDir, domain.Name+".task")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", outPath, err)
	}
	defer out.Close()

	log.WithFields(logrus.Fields{
		"domainFile":  domainFile,
		"problemFile": problemFile,
		"output":      outPath,
		"seed":        seed,
	}).Info("compiling")

	result, err := compiler.Compile(domain, opts, out, log)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"stateFluents":  len(result.Task.StateFluents),
		"actionFluents": len(result.Task.ActionFluents),
		"actionStates":  len(result.Task.ActionStates),
	}).Info("compiled")
	return nil
}

// loadInstance reads domainFile's types/variables/cpfs/reward/
// preconditions and problemFile's nonFluents/horizon/discount/
// maxConcurrent, then merges them into the single inputmodel.Domain the
// rest of the pipeline expects. The lexical/syntactic split between the
// two files is the out-of-scope parser's concern (§1 Non-goals); rddlc
// just needs both halves decoded before anything downstream runs.
func loadInstance(domainFile, problemFile string) (*inputmodel.Domain, error) {
	df, err := os.Open(domainFile)
	if err != nil {
		return nil, fmt.Errorf("open domain file: %w", err)
	}
	defer df.Close()
	domain, err := inputmodel.Load(df)
	if err != nil {
		return nil, fmt.Errorf("load domain file %q: %w", domainFile, err)
	}

	pf, err := os.Open(problemFile)
	if err != nil {
		return nil, fmt.Errorf("open problem file: %w", err)
	}
	defer pf.Close()
	problem, err := inputmodel.Load(pf)
	if err != nil {
		return nil, fmt.Errorf("load problem file %q: %w", problemFile, err)
	}

	domain.NonFluents = problem.NonFluents
	domain.Horizon = problem.Horizon
	domain.Discount = problem.Discount
	domain.MaxConcurrent = problem.MaxConcurrent
	if problem.Name != "" {
		domain.Name = problem.Name
	}
	return domain, nil
}

func newLogger(runID string) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l.WithField("run", runID)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

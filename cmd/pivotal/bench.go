package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wizenheimer/pivotal"
)

type benchOptions struct {
	index   string
	queries []string
	file    string
	k       int
	radius  float64
	metrics bool
}

func newBenchCmd(a *app) *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure recall and distance evaluations against a sequential scan",
		Long: `Bench answers every query with the index and with a sequential scan of
the same database, then reports recall and the distance evaluations each
one needed.

Examples:
  pivotal bench --index points.pvt --queries queries.txt --k 10
  pivotal bench --index points.pvt --queries queries.txt --radius 0.05 --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.index, "index", "", "Index file written by build")
	cmd.Flags().StringArrayVarP(&opts.queries, "query", "q", nil, "Query vector (comma separated)")
	cmd.Flags().StringVar(&opts.file, "queries", "", "File with one query vector per line")
	cmd.Flags().IntVar(&opts.k, "k", 10, "Number of neighbors")
	cmd.Flags().Float64VarP(&opts.radius, "radius", "r", 0, "Search radius (range query)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print the distance counters as Prometheus metrics")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

// benchReport summarizes one bench run.
type benchReport struct {
	Queries    int
	Recall     float64
	IndexCost  pivotal.SearchCost
	ScanCost   pivotal.SearchCost
	IndexTime  time.Duration
	ScanTime   time.Duration
	RangeQuery bool
}

// recall returns the fraction of truth found in got. An empty truth counts as full recall.
func recall(got, truth *pivotal.Result) float64 {
	if truth.Len() == 0 {
		return 1
	}
	found := make(map[int]struct{}, got.Len())
	for _, id := range got.IDs() {
		found[id] = struct{}{}
	}
	hits := 0
	for _, id := range truth.IDs() {
		if _, ok := found[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(truth.Len())
}

// bench runs every query against idx and a sequential scan of db.
func bench(db pivotal.MetricDB[[]float32], idx pivotal.Index[[]float32], queries [][]float32, k int, radius float64, rangeQuery bool) benchReport {
	scan := pivotal.NewSequential(db)
	search := func(index pivotal.Index[[]float32], q []float32) *pivotal.Result {
		if rangeQuery {
			return index.SearchRange(q, radius)
		}
		return index.SearchKNN(q, k, nil)
	}

	report := benchReport{Queries: len(queries), RangeQuery: rangeQuery}
	before := idx.Cost()
	var total float64
	for _, q := range queries {
		start := time.Now()
		got := search(idx, q)
		report.IndexTime += time.Since(start)

		start = time.Now()
		truth := search(scan, q)
		report.ScanTime += time.Since(start)

		total += recall(got, truth)
	}
	after := idx.Cost()
	report.Recall = total / float64(len(queries))
	report.IndexCost = pivotal.SearchCost{
		Internal: after.Internal - before.Internal,
		External: after.External - before.External,
	}
	report.ScanCost = scan.Cost()
	return report
}

func (r benchReport) write(w io.Writer, kind pivotal.IndexKind) {
	n := float64(r.Queries)
	mode := "knn"
	if r.RangeQuery {
		mode = "range"
	}
	fmt.Fprintf(w, "index:      %s (%s, %d queries)\n", kind, mode, r.Queries)
	fmt.Fprintf(w, "recall:     %.4f\n", r.Recall)
	fmt.Fprintf(w, "distances:  %.1f per query (internal %.1f, external %.1f)\n",
		float64(r.IndexCost.Total())/n, float64(r.IndexCost.Internal)/n, float64(r.IndexCost.External)/n)
	fmt.Fprintf(w, "sequential: %.1f per query\n", float64(r.ScanCost.Total())/n)
	fmt.Fprintf(w, "time:       %s index, %s sequential\n", r.IndexTime, r.ScanTime)
}

// writeMetrics gathers the cost collector of idx and prints each counter.
func writeMetrics(w io.Writer, idx pivotal.Index[[]float32]) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(pivotal.NewCostCollector("pivotal", idx)); err != nil {
		return err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s{kind=%q} %g\n", mf.GetName(), string(idx.Kind()), m.GetCounter().GetValue())
		}
	}
	return nil
}

func runBench(cmd *cobra.Command, a *app, opts *benchOptions) error {
	queries, err := collectQueries(opts.queries, opts.file)
	if err != nil {
		return err
	}
	db, idx, err := loadBundle(opts.index)
	if err != nil {
		return err
	}
	if err := checkDimensions(db, queries); err != nil {
		return err
	}

	report := bench(db, idx, queries, opts.k, opts.radius, cmd.Flags().Changed("radius"))
	out := cmd.OutOrStdout()
	report.write(out, idx.Kind())
	a.logger.Debug("bench completed", "queries", report.Queries, "recall", report.Recall)
	if opts.metrics {
		return writeMetrics(out, idx)
	}
	return nil
}

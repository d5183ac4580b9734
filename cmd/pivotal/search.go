package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/pivotal"
)

type searchOptions struct {
	index   string
	queries []string
	file    string
	k       int
	radius  float64
	asJSON  bool
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run range or k-nearest-neighbor queries against an index file",
		Long: `Search loads an index file written by build and answers each query.
Queries are given with --query (repeatable) or read from --queries.
With --radius the search is a range query; otherwise it returns the --k
nearest neighbors.

Examples:
  pivotal search --index points.pvt --query "0.5,0.5" --k 5
  pivotal search --index points.pvt --queries queries.txt --radius 0.1 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.index, "index", "", "Index file written by build")
	cmd.Flags().StringArrayVarP(&opts.queries, "query", "q", nil, "Query vector (comma separated)")
	cmd.Flags().StringVar(&opts.file, "queries", "", "File with one query vector per line")
	cmd.Flags().IntVar(&opts.k, "k", 10, "Number of neighbors")
	cmd.Flags().Float64VarP(&opts.radius, "radius", "r", 0, "Search radius (range query)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output results as JSON lines")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

// collectQueries merges --query values and the --queries file.
func collectQueries(inline []string, file string) ([][]float32, error) {
	var queries [][]float32
	for i, q := range inline {
		vec, err := parseVector(q)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		queries = append(queries, vec)
	}
	if file != "" {
		vectors, err := readVectorFile(file)
		if err != nil {
			return nil, err
		}
		queries = append(queries, vectors...)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries given: use --query or --queries")
	}
	return queries, nil
}

func checkDimensions(db *pivotal.VectorDB, queries [][]float32) error {
	for i, q := range queries {
		if len(q) != db.Dimensions() {
			return fmt.Errorf("query %d: %w", i, &pivotal.ErrDimensionMismatch{Expected: db.Dimensions(), Actual: len(q)})
		}
	}
	return nil
}

type hitJSON struct {
	ID   int     `json:"id"`
	Dist float64 `json:"dist"`
}

type queryJSON struct {
	Query int       `json:"query"`
	Hits  []hitJSON `json:"hits"`
}

func writeResult(w io.Writer, query int, res *pivotal.Result, asJSON bool) error {
	items := res.Items()
	if asJSON {
		out := queryJSON{Query: query, Hits: make([]hitJSON, len(items))}
		for i, it := range items {
			out.Hits[i] = hitJSON{ID: it.ID, Dist: it.Dist}
		}
		return json.NewEncoder(w).Encode(out)
	}
	for rank, it := range items {
		if _, err := fmt.Fprintf(w, "%d\t%d\t%d\t%.6g\n", query, rank+1, it.ID, it.Dist); err != nil {
			return err
		}
	}
	return nil
}

func runSearch(cmd *cobra.Command, a *app, opts *searchOptions) error {
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

	rangeQuery := cmd.Flags().Changed("radius")
	out := cmd.OutOrStdout()
	for i, q := range queries {
		var res *pivotal.Result
		if rangeQuery {
			res = idx.SearchRange(q, opts.radius)
		} else {
			res = idx.SearchKNN(q, opts.k, nil)
		}
		if err := writeResult(out, i, res, opts.asJSON); err != nil {
			return err
		}
	}
	cost := idx.Cost()
	a.logger.Debug("queries answered",
		"queries", len(queries),
		"internal", cost.Internal,
		"external", cost.External,
	)
	return nil
}

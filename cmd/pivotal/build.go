package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/pivotal"
)

type buildOptions struct {
	input  string
	output string
}

func newBuildCmd(a *app) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index over a vector file",
		Long: `Build reads one vector per line (comma or whitespace separated) and
writes a file bundling the vectors with the index built over them.

Examples:
  pivotal build --input points.txt --output points.pvt
  pivotal build --input points.txt --output points.pvt --kind poly --clusters 64 --instances 4
  pivotal build --input points.txt --output points.pvt --pivots 32 --search-pivots 8 --codec none`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := overrideIndexFlags(cmd, &a.cfg.Index); err != nil {
				return err
			}
			return runBuild(cmd, a, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Vector file to index")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Index file to write")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	defaults := DefaultConfig().Index
	cmd.Flags().String("kind", defaults.Kind, "Index kind (sequential, laesa, compact-pivots, list-of-clusters, poly)")
	cmd.Flags().String("distance", defaults.Distance, "Distance (l2, l1, linf, angular)")
	cmd.Flags().Int("pivots", defaults.Pivots, "Number of pivots")
	cmd.Flags().Int("search-pivots", defaults.SearchPivots, "Pivots consulted per query")
	cmd.Flags().Int("clusters", defaults.Clusters, "Centers per list of clusters")
	cmd.Flags().Int("instances", defaults.Instances, "Lists of clusters combined by a poly index")
	cmd.Flags().String("sequence", defaults.Sequence, "Sequence encoding (inverted, packed)")
	cmd.Flags().Uint64("seed", defaults.Seed, "Sampling seed")
	cmd.Flags().Int("parallelism", defaults.Parallelism, "Pivots encoded concurrently (0 uses GOMAXPROCS)")
	cmd.Flags().Bool("half-precision", defaults.HalfPrecision, "Store vectors as float16")
	cmd.Flags().String("codec", defaults.Codec, "File compression (none, gzip, zstd)")
	return cmd
}

// overrideIndexFlags copies the index flags set on the command line into cfg.
func overrideIndexFlags(cmd *cobra.Command, cfg *IndexConfig) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func()) {
		if err == nil && flags.Changed(name) {
			apply()
		}
	}
	set("kind", func() { cfg.Kind, err = flags.GetString("kind") })
	set("distance", func() { cfg.Distance, err = flags.GetString("distance") })
	set("pivots", func() { cfg.Pivots, err = flags.GetInt("pivots") })
	set("search-pivots", func() { cfg.SearchPivots, err = flags.GetInt("search-pivots") })
	set("clusters", func() { cfg.Clusters, err = flags.GetInt("clusters") })
	set("instances", func() { cfg.Instances, err = flags.GetInt("instances") })
	set("sequence", func() { cfg.Sequence, err = flags.GetString("sequence") })
	set("seed", func() { cfg.Seed, err = flags.GetUint64("seed") })
	set("parallelism", func() { cfg.Parallelism, err = flags.GetInt("parallelism") })
	set("half-precision", func() { cfg.HalfPrecision, err = flags.GetBool("half-precision") })
	set("codec", func() { cfg.Codec, err = flags.GetString("codec") })
	if err != nil {
		return err
	}
	return configValidate.Struct(cfg)
}

func runBuild(cmd *cobra.Command, a *app, opts *buildOptions) error {
	cfg := &a.cfg.Index
	codec, err := pivotal.ParseCodec(cfg.Codec)
	if err != nil {
		return err
	}
	vectors, err := readVectorFile(opts.input)
	if err != nil {
		return err
	}
	db, err := newVectorDB(cfg, vectors)
	if err != nil {
		return err
	}

	start := time.Now()
	idx, err := buildIndex(cfg, db, a.logger)
	if err != nil {
		return fmt.Errorf("failed to build %s index: %w", cfg.Kind, err)
	}
	if err := saveBundle(opts.output, codec, db, idx); err != nil {
		return fmt.Errorf("failed to save %s: %w", opts.output, err)
	}
	a.logger.Info("index written",
		"path", opts.output,
		"kind", string(idx.Kind()),
		"objects", db.Len(),
		"codec", codec.String(),
		"elapsed", time.Since(start),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d vectors into %s (%s)\n", db.Len(), opts.output, idx.Kind())
	return nil
}

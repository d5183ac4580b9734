package main

import (
	"fmt"

	"github.com/wizenheimer/pivotal"
)

// buildIndex constructs the index described by cfg over db.
func buildIndex(cfg *IndexConfig, db *pivotal.VectorDB, logger *pivotal.Logger) (pivotal.Index[[]float32], error) {
	opts := cfg.BuildOptions(logger)
	switch pivotal.IndexKind(cfg.Kind) {
	case pivotal.SequentialKind:
		return pivotal.NewSequential[[]float32](db), nil
	case pivotal.LAESAKind:
		idx, err := pivotal.BuildLAESA[[]float32](db, cfg.Pivots, opts...)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case pivotal.CompactPivotsKind:
		idx, err := pivotal.BuildCompactPivots[[]float32](db, cfg.Pivots, cfg.SearchPivots, opts...)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case pivotal.ListOfClustersKind:
		idx, err := pivotal.BuildListOfClusters[[]float32](db, cfg.Clusters, opts...)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case pivotal.PolyIndexKind:
		partials := make([]pivotal.PartialIndex[[]float32], cfg.Instances)
		for i := range partials {
			lc, err := pivotal.BuildListOfClusters[[]float32](db, cfg.Clusters,
				append(opts, pivotal.WithSeed(cfg.Seed+uint64(i)))...)
			if err != nil {
				return nil, fmt.Errorf("partial index %d: %w", i, err)
			}
			partials[i] = lc
		}
		// The partials already carry the configured sequences.
		idx, err := pivotal.BuildPolyIndex(partials, 0,
			pivotal.WithSeed(cfg.Seed),
			pivotal.WithLogger(logger),
			pivotal.WithParallelism(cfg.Parallelism),
		)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: %q", pivotal.ErrUnknownIndexKind, cfg.Kind)
	}
}

// newVectorDB loads vectors into a database configured by cfg.
func newVectorDB(cfg *IndexConfig, vectors [][]float32) (*pivotal.VectorDB, error) {
	var dbOpts []pivotal.VectorDBOption
	if cfg.HalfPrecision {
		dbOpts = append(dbOpts, pivotal.WithHalfPrecision())
	}
	db, err := pivotal.NewVectorDB(len(vectors[0]), pivotal.DistanceKind(cfg.Distance), dbOpts...)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if _, err := db.Add(v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return db, nil
}

// saveBundle stores the database followed by the tagged index.
func saveBundle(path string, codec pivotal.Codec, db *pivotal.VectorDB, idx pivotal.Index[[]float32]) error {
	return pivotal.SaveFile(path, codec, db, pivotal.Tagged(idx))
}

// loadBundle restores a file written by saveBundle.
func loadBundle(path string) (*pivotal.VectorDB, pivotal.Index[[]float32], error) {
	f, err := pivotal.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	db := new(pivotal.VectorDB)
	if _, err := db.ReadFrom(f); err != nil {
		return nil, nil, fmt.Errorf("failed to read database: %w", err)
	}
	idx, _, err := pivotal.LoadIndex[[]float32](f, db)
	if err != nil {
		return nil, nil, err
	}
	return db, idx, nil
}

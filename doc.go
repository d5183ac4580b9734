/*
Package pivotal provides pivot-based similarity search over arbitrary metric spaces.

Pivotal indexes any collection whose distance function is a metric: vectors
under L1, L2, L∞ or angular distance, token sets under Jaccard distance, or
any type you wrap in a MetricDB. Every index prunes with the triangle
inequality. Range results are always exact, and so are k-nearest-neighbor
results, except for CompactPivots consulting fewer pivots than it holds
(SearchPivots() < NumPivots()), whose KNN is approximate.

# Overview

The central structure is CompactPivots. It stores the distance of every
object to a handful of pivots, discretized into buckets one standard
deviation wide and packed into rank/select sequences. Queries read whole
buckets at once and intersect them, computing exact distances only for the
objects that survive.

The second structure is PolyIndex, a composite that intersects several
partial indexes (lists of clusters) and gates every exact distance with a
pivot filter.

# Quick Start

Build a compact pivot index over 2-dimensional points:

	package main

	import (
	    "fmt"
	    "log"

	    "github.com/wizenheimer/pivotal"
	)

	func main() {
	    db, err := pivotal.NewVectorDB(2, pivotal.Euclidean)
	    if err != nil {
	        log.Fatal(err)
	    }
	    for _, p := range points {
	        if _, err := db.Add(p); err != nil {
	            log.Fatal(err)
	        }
	    }

	    // 20 pivots, all of them consulted per query
	    idx, err := pivotal.BuildCompactPivots[[]float32](db, 20, 20)
	    if err != nil {
	        log.Fatal(err)
	    }

	    res := idx.SearchKNN([]float32{0.5, 0.5}, 5, nil)
	    for _, it := range res.Items() {
	        fmt.Printf("id=%d dist=%.4f\n", it.ID, it.Dist)
	    }
	}

# Index Types

Sequential: brute force, the reference for recall.

	idx := pivotal.NewSequential[[]float32](db)

LAESA: exact pivot table, 8 bytes per object and pivot.

	idx, _ := pivotal.BuildLAESA[[]float32](db, 16)

CompactPivots: discretized pivot table in rank/select sequences. Consulting
fewer pivots than were built (searchPivots < numPivots) makes queries
cheaper; range results stay exact, kNN may lose recall.

	idx, _ := pivotal.BuildCompactPivots[[]float32](db, 32, 8)

ListOfClusters: random centers with covering radii. Usable on its own or as
a partial index.

	lc, _ := pivotal.BuildListOfClusters[[]float32](db, 64, pivotal.WithSeed(1))

PolyIndex: intersection of partial indexes plus a confirmation filter.

	partials := []pivotal.PartialIndex[[]float32]{lc1, lc2, lc3}
	poly, _ := pivotal.BuildPolyIndex(partials, 0)

# Sequences

Pivot distances are stored as symbols in a RankSelectSeq. Two encodings
are provided and selected with WithSequenceBuilder:

	idx, _ := pivotal.BuildCompactPivots[[]float32](db, 32, 8,
	    pivotal.WithSequenceBuilder(pivotal.BuildPackedSeq))

InvertedSeq keeps one roaring bitmap per symbol and is the default.
PackedSeq keeps one uint16 per object; random access is cheap but every
bucket read scans the sequence.

# Text

TextDB turns strings into normalized token sets and compares them with
Jaccard distance:

	db := pivotal.NewTextDB()
	db.Add("The quick brown fox")
	db.Add("A quick brown dog")
	idx, _ := pivotal.BuildCompactPivots[pivotal.TokenSet](db, 2, 2)
	res := idx.SearchRange(pivotal.NewTokenSet("quick fox"), 0.6)

# Serialization

Indexes store references to their database, never the objects. Save the
database alongside the index with SaveFile, tagging the index so it can be
restored without knowing its concrete type:

	err := pivotal.SaveFile("points.pvt", pivotal.CodecZstd, db, pivotal.Tagged[[]float32](idx))

	f, _ := pivotal.OpenFile("points.pvt")
	defer f.Close()
	db := new(pivotal.VectorDB)
	db.ReadFrom(f)
	idx, _, err := pivotal.LoadIndex[[]float32](f, db)

# Observability

Builds report through a slog based Logger (silent by default):

	idx, _ := pivotal.BuildCompactPivots[[]float32](db, 32, 8,
	    pivotal.WithLogger(pivotal.NewTextLogger(slog.LevelDebug)))

Distance counters are exported to Prometheus with NewCostCollector:

	prometheus.MustRegister(pivotal.NewCostCollector("pivotal", idx))

# Thread Safety

Indexes are immutable once built and safe for concurrent queries. Cost
counters are atomic. A Result is per-query state.
*/
package pivotal

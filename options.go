package pivotal

import "runtime"

// DefaultSeed seeds pivot and center sampling when WithSeed is not given.
const DefaultSeed uint64 = 42

// BuildOption configures index construction.
type BuildOption func(*buildConfig)

type buildConfig struct {
	seed        uint64
	seqBuilder  SequenceBuilder
	seqExplicit bool
	logger      *Logger
	parallelism int
}

func newBuildConfig(opts []BuildOption) *buildConfig {
	cfg := &buildConfig{
		seed:        DefaultSeed,
		seqBuilder:  DefaultSequenceBuilder,
		logger:      NoopLogger(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSeed sets the seed of the sampling generator. Builds with the same
// seed over the same database produce byte-identical indexes.
func WithSeed(seed uint64) BuildOption {
	return func(c *buildConfig) {
		c.seed = seed
	}
}

// WithSequenceBuilder sets how symbol arrays are turned into rank/select sequences.
// A nil builder keeps the default.
func WithSequenceBuilder(builder SequenceBuilder) BuildOption {
	return func(c *buildConfig) {
		if builder != nil {
			c.seqBuilder = builder
			c.seqExplicit = true
		}
	}
}

// WithLogger sets the logger used to report build progress.
func WithLogger(logger *Logger) BuildOption {
	return func(c *buildConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithParallelism bounds the number of pivots encoded concurrently.
// n <= 0 uses GOMAXPROCS. The resulting index does not depend on n.
func WithParallelism(n int) BuildOption {
	return func(c *buildConfig) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		c.parallelism = n
	}
}

package forest

// Option configures Fit.
type Option func(*config)

// WithTrees sets the number of trees (default 100).
func WithTrees(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.nTrees = n
		}
	}
}

// WithSeed sets the base random seed (default 42).
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithMaxDepth limits tree depth. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(c *config) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithMinSamplesSplit sets the smallest node that may be split (default 2).
func WithMinSamplesSplit(n int) Option {
	return func(c *config) {
		if n >= 2 {
			c.minSamplesSplit = n
		}
	}
}

// WithMinSamplesLeaf sets the smallest allowed leaf (default 1).
func WithMinSamplesLeaf(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.minSamplesLeaf = n
		}
	}
}

// WithMaxFeatures limits the features considered per split. 0 considers all.
func WithMaxFeatures(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxFeatures = n
		}
	}
}

// WithBootstrap toggles bootstrap sampling (default on).
func WithBootstrap(on bool) Option {
	return func(c *config) { c.bootstrap = on }
}

// WithParallelism caps the number of trees fitted at once.
func WithParallelism(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

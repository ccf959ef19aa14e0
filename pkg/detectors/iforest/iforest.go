// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/logsentry/pkg/detectors"
)

// eulerGamma is the Euler-Mascheroni constant.
const eulerGamma = 0.5772156649

// exactHarmonicLimit is the largest argument for which harmonic numbers are
// summed term by term. Past it the asymptotic expansion is accurate to 1e-9.
const exactHarmonicLimit = 64

var _ detectors.Detector = (*IsolationForest)(nil)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees      int
	sampleSize  int
	seed        int64
	seeded      bool
	workers     int
	replacement bool

	// Trained model
	trees   []*iTree
	psi     int // effective sub-sample size of the last fit
	dim     int
	trained bool

	maxDepth      int
	avgPathLength float64 // c(psi)
}

// iTree represents a single isolation tree.
type iTree struct {
	Root *node
}

// node is a node in the isolation tree. Fields are exported for gob.
type node struct {
	// Split parameters (for internal nodes)
	Feature int
	Split   float64

	// Children
	Left  *node
	Right *node

	// Leaf information
	Size  int // number of samples that reached this leaf
	Depth int
}

func (n *node) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithSeed sets the master seed. Every tree derives its own generator from
// it, so fits are reproducible regardless of worker count.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = seed
		f.seeded = true
	}
}

// WithWorkers bounds the number of goroutines used by Fit and Score.
// Values below one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(f *IsolationForest) {
		f.workers = n
	}
}

// WithReplacement draws each tree's sub-sample with replacement.
func WithReplacement(on bool) Option {
	return func(f *IsolationForest) {
		f.replacement = on
	}
}

// FromConfig translates the shared detector configuration into options.
func FromConfig(cfg detectors.Config) []Option {
	opts := []Option{
		WithTrees(cfg.Trees),
		WithSampleSize(cfg.SampleSize),
		WithWorkers(cfg.Workers),
		WithReplacement(cfg.Replacement),
	}
	if cfg.Seed != nil {
		opts = append(opts, WithSeed(*cfg.Seed))
	}
	return opts
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:     100,
		sampleSize: 256,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.workers < 1 {
		f.workers = runtime.GOMAXPROCS(0)
	}
	if !f.seeded {
		f.seed = time.Now().UnixNano()
		log.Warn().
			Int64("seed", f.seed).
			Msg("isolation forest has no explicit seed, results are not reproducible")
	}

	return f
}

// Seeded reports whether an explicit seed was configured.
func (f *IsolationForest) Seeded() bool {
	return f.seeded
}

// Seed returns the master seed in use.
func (f *IsolationForest) Seed() int64 {
	return f.seed
}

// NumTrees returns the number of fitted trees.
func (f *IsolationForest) NumTrees() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.trees)
}

// Fit trains the Isolation Forest on the provided data. Fitting an empty
// data set succeeds and leaves a model that scores everything as neutral.
func (f *IsolationForest) Fit(data [][]float64) error {
	dim, err := checkData(data, -1)
	if err != nil {
		return err
	}

	f.mu.RLock()
	nTrees, seed, workers, replacement := f.nTrees, f.seed, f.workers, f.replacement
	psi := f.sampleSize
	f.mu.RUnlock()

	nSamples := len(data)

	// Adjust sample size if needed
	if psi > nSamples {
		psi = nSamples
	}
	maxDepth := heightLimit(psi)

	var trees []*iTree
	if psi > 1 && nTrees > 0 {
		trees = make([]*iTree, nTrees)

		var g errgroup.Group
		g.SetLimit(workers)
		for i := range trees {
			i := i
			g.Go(func() error {
				rng := rand.New(rand.NewSource(deriveSeed(seed, i)))
				b := builder{
					rng:       rng,
					maxDepth:  maxDepth,
					nFeatures: dim,
				}
				sample := drawSample(rng, data, psi, replacement)
				trees[i] = &iTree{Root: b.build(sample, 0)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("build trees: %w", err)
		}
	}

	f.mu.Lock()
	f.trees = trees
	f.psi = psi
	f.dim = dim
	f.maxDepth = maxDepth
	f.avgPathLength = averagePathLength(psi)
	f.trained = true
	f.mu.Unlock()

	log.Debug().
		Int("trees", len(trees)).
		Int("samples", nSamples).
		Int("subSample", psi).
		Int("maxDepth", maxDepth).
		Msg("isolation forest fitted")

	return nil
}

// drawSample picks psi rows for one tree.
func drawSample(rng *rand.Rand, data [][]float64, psi int, replacement bool) [][]float64 {
	sample := make([][]float64, psi)
	if replacement {
		for j := range sample {
			sample[j] = data[rng.Intn(len(data))]
		}
		return sample
	}

	// Sample without replacement
	indices := rng.Perm(len(data))[:psi]
	for j, idx := range indices {
		sample[j] = data[idx]
	}
	return sample
}

// builder grows one tree from its own generator.
type builder struct {
	rng       *rand.Rand
	maxDepth  int
	nFeatures int
}

func (b *builder) build(data [][]float64, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= b.maxDepth || n <= 1 {
		return &node{Size: n, Depth: depth}
	}

	// Only features with spread can separate samples at this node.
	varying := make([]int, 0, b.nFeatures)
	lows := make([]float64, b.nFeatures)
	highs := make([]float64, b.nFeatures)
	for feature := 0; feature < b.nFeatures; feature++ {
		lo, hi := data[0][feature], data[0][feature]
		for _, row := range data[1:] {
			if row[feature] < lo {
				lo = row[feature]
			}
			if row[feature] > hi {
				hi = row[feature]
			}
		}
		lows[feature], highs[feature] = lo, hi
		if lo < hi {
			varying = append(varying, feature)
		}
	}

	// All samples identical
	if len(varying) == 0 {
		return &node{Size: n, Depth: depth}
	}

	feature := varying[b.rng.Intn(len(varying))]
	split := b.drawSplit(lows[feature], highs[feature])

	// Partition in place: rows below the split first.
	mid := 0
	for j, row := range data {
		if row[feature] < split {
			data[mid], data[j] = data[j], data[mid]
			mid++
		}
	}

	return &node{
		Feature: feature,
		Split:   split,
		Depth:   depth,
		Left:    b.build(data[:mid], depth+1),
		Right:   b.build(data[mid:], depth+1),
	}
}

// drawSplit returns a value in (lo, hi]. It is strictly inside the range
// unless lo and hi are adjacent floats, in which case hi still separates them.
func (b *builder) drawSplit(lo, hi float64) float64 {
	for attempt := 0; attempt < 8; attempt++ {
		split := lo + b.rng.Float64()*(hi-lo)
		if split > lo && split < hi {
			return split
		}
	}
	return hi
}

// Score returns decision scores for the given samples: 0.5 minus the
// isolation anomaly score, so negative values mark anomalies.
func (f *IsolationForest) Score(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	scores := make([]float64, len(data))
	if len(data) == 0 || len(f.trees) == 0 || f.psi <= 1 {
		return scores, nil
	}

	if _, err := checkData(data, f.dim); err != nil {
		return nil, err
	}

	chunk := (len(data) + f.workers - 1) / f.workers
	var g errgroup.Group
	for start := 0; start < len(data); start += chunk {
		start := start
		end := min(start+chunk, len(data))
		g.Go(func() error {
			for i := start; i < end; i++ {
				scores[i] = f.decision(data[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}

// ScoreOne returns the decision score for a single sample.
func (f *IsolationForest) ScoreOne(sample []float64) (float64, error) {
	scores, err := f.Score([][]float64{sample})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

func (f *IsolationForest) decision(sample []float64) float64 {
	// Average path length across all trees, summed in tree order.
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.Root)
	}
	avgPath := totalPath / float64(len(f.trees))

	// Anomaly score: 2^(-avgPath / c(psi)), higher = more anomalous
	score := math.Pow(2, -avgPath/f.avgPathLength)

	return 0.5 - score
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node) float64 {
	for !n.isLeaf() {
		if sample[n.Feature] < n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	// Leaf node: add expected path length for remaining isolation
	return float64(n.Depth) + averagePathLength(n.Size)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	return 2*harmonic(n-1) - 2*float64(n-1)/float64(n)
}

// harmonic returns the i-th harmonic number. Small arguments are summed
// exactly since ln(i)+gamma is off by up to 0.42 there.
func harmonic(i int) float64 {
	if i <= exactHarmonicLimit {
		var h float64
		for k := 1; k <= i; k++ {
			h += 1 / float64(k)
		}
		return h
	}
	x := float64(i)
	return math.Log(x) + eulerGamma + 1/(2*x) - 1/(12*x*x)
}

// heightLimit is ceil(log2(psi)).
func heightLimit(psi int) int {
	if psi <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(psi))))
}

// deriveSeed mixes the master seed with a tree index (splitmix64).
func deriveSeed(master int64, tree int) int64 {
	z := uint64(master) + uint64(tree+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// checkData verifies rows share one dimension (want, or the first row's when
// want is negative) and hold finite values.
func checkData(data [][]float64, want int) (int, error) {
	if len(data) == 0 {
		return max(want, 0), nil
	}
	dim := want
	if dim < 0 {
		dim = len(data[0])
	}
	for i, row := range data {
		if len(row) != dim {
			return 0, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), dim, detectors.ErrDimensionMismatch)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("row %d feature %d: %w", i, j, detectors.ErrNonFinite)
			}
		}
	}
	if dim == 0 {
		return 0, fmt.Errorf("rows have no features: %w", detectors.ErrDimensionMismatch)
	}
	return dim, nil
}

// modelState is the gob wire form of a fitted forest.
type modelState struct {
	NTrees      int
	SampleSize  int
	Seed        int64
	Seeded      bool
	Replacement bool
	Psi         int
	Dim         int
	Trees       []*iTree
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(modelState{
		NTrees:      f.nTrees,
		SampleSize:  f.sampleSize,
		Seed:        f.seed,
		Seeded:      f.seeded,
		Replacement: f.replacement,
		Psi:         f.psi,
		Dim:         f.dim,
		Trees:       f.trees,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	var state modelState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if len(state.Trees) > 0 && state.Psi <= 1 {
		return errors.New("decode model: trees present for a degenerate sub-sample")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = state.NTrees
	f.sampleSize = state.SampleSize
	f.seed = state.Seed
	f.seeded = state.Seeded
	f.replacement = state.Replacement
	f.psi = state.Psi
	f.dim = state.Dim
	f.trees = state.Trees
	f.maxDepth = heightLimit(state.Psi)
	f.avgPathLength = averagePathLength(state.Psi)
	f.trained = true

	return nil
}

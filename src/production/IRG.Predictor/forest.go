package predictor

import (
	"math"
	"math/rand"
	"sort"
)

type featureRow = [numFeatures]float64

// node is a decision tree node. Leaves have left == -1 and carry the
// fraction of relay-on samples that reached them.
type node struct {
	feature   int
	threshold float64
	left      int32
	right     int32
	prob      float64
}

type tree struct {
	nodes []node
}

func (t *tree) probability(x featureRow) float64 {
	i := int32(0)
	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.prob
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type forestParams struct {
	trees           int
	maxDepth        int // 0 grows until leaves are pure
	minSamplesSplit int
	maxFeatures     int
}

// forest is a random forest of Gini-split CART trees, each fit on a bootstrap sample.
type forest struct {
	trees []tree
}

func fitForest(x []featureRow, y []int, p forestParams, seed int64) *forest {
	if p.maxFeatures <= 0 {
		p.maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(numFeatures))))
	}
	master := rand.New(rand.NewSource(seed))
	f := &forest{trees: make([]tree, 0, p.trees)}
	for t := 0; t < p.trees; t++ {
		rng := rand.New(rand.NewSource(master.Int63()))

		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}

		b := &treeBuilder{x: x, y: y, params: p, rng: rng}
		b.grow(sample, 0)
		f.trees = append(f.trees, tree{nodes: b.nodes})
	}
	return f
}

// probability averages the relay-on probability over all trees
func (f *forest) probability(x featureRow) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.trees {
		sum += f.trees[i].probability(x)
	}
	return sum / float64(len(f.trees))
}

// predict returns 1 when relay-on wins the vote; ties go to 0.
func (f *forest) predict(x featureRow) int {
	if f.probability(x) > 0.5 {
		return 1
	}
	return 0
}

type treeBuilder struct {
	x      []featureRow
	y      []int
	params forestParams
	rng    *rand.Rand
	nodes  []node
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{left: -1, right: -1, prob: float64(pos) / float64(len(idx))})

	if pos == 0 || pos == len(idx) || len(idx) < b.params.minSamplesSplit {
		return id
	}
	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].feature = feature
	b.nodes[id].threshold = threshold
	b.nodes[id].left = l
	b.nodes[id].right = r
	return id
}

// bestSplit draws maxFeatures candidate features; when all of them are constant
// on idx the remaining features are tried before giving up.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	order := b.rng.Perm(numFeatures)
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)

	sorted := make([]int, len(idx))
	for k, feature := range order {
		if k >= b.params.maxFeatures && bestFeature >= 0 {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][feature] < b.x[sorted[j]][feature]
		})

		n := len(sorted)
		total := 0
		for _, i := range sorted {
			total += b.y[i]
		}
		leftPos := 0
		for i := 0; i < n-1; i++ {
			leftPos += b.y[sorted[i]]
			lo := b.x[sorted[i]][feature]
			hi := b.x[sorted[i+1]][feature]
			if lo == hi {
				continue
			}
			nl, nr := float64(i+1), float64(n-i-1)
			impurity := (nl*gini(float64(leftPos)/nl) + nr*gini(float64(total-leftPos)/nr)) / float64(n)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(p float64) float64 {
	return 2 * p * (1 - p)
}

// trainTestSplit shuffles 0..n-1 with seed and holds out ceil(testFraction*n) indices,
// keeping at least one index on each side.
func trainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

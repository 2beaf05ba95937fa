package classifier

import (
	"math/rand"
	"sort"

	"wisefido-triage/internal/models"
)

// leafFeature 叶子节点的 Feature 取值
const leafFeature = -1

// Node 决策树节点（扁平数组存储，子节点下标总是大于父节点）
type Node struct {
	Feature   int                             `json:"feature"`
	Threshold float64                         `json:"threshold"`
	Left      int                             `json:"left"`
	Right     int                             `json:"right"`
	Counts    [models.NumConfidenceLevels]int `json:"counts"`
}

// IsLeaf 是否叶子节点
func (n Node) IsLeaf() bool {
	return n.Feature == leafFeature
}

type tree struct {
	nodes []Node
}

// predictProba 返回叶子节点的类别分布
func (t *tree) predictProba(fv models.FeatureVector) [models.NumConfidenceLevels]float64 {
	var proba [models.NumConfidenceLevels]float64
	i := 0
	for !t.nodes[i].IsLeaf() {
		n := t.nodes[i]
		if float64(fv[n.Feature]) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}

	leaf := t.nodes[i]
	total := 0
	for _, c := range leaf.Counts {
		total += c
	}
	if total == 0 {
		return proba
	}
	for k, c := range leaf.Counts {
		proba[k] = float64(c) / float64(total)
	}
	return proba
}

// treeBuilder CART 决策树构建（Gini 不纯度）
type treeBuilder struct {
	features []models.FeatureVector
	labels   []int
	maxDepth int
	maxFeat  int
	rng      *rand.Rand
	nodes    []Node
}

func (b *treeBuilder) build(indices []int, depth int) int {
	counts := classCounts(b.labels, indices)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leafFeature, Left: -1, Right: -1, Counts: counts})

	if depth >= b.maxDepth || len(indices) < 2 || isPure(counts) {
		return idx
	}

	feature, threshold, ok := b.bestSplit(indices, counts)
	if !ok {
		return idx
	}

	var left, right []int
	for _, i := range indices {
		if float64(b.features[i][feature]) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.nodes[idx].Feature = feature
	b.nodes[idx].Threshold = threshold
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

// bestSplit 在随机特征子集上寻找最优划分；子集内无有效划分时继续检查剩余特征
func (b *treeBuilder) bestSplit(indices []int, parent [models.NumConfidenceLevels]int) (int, float64, bool) {
	order := b.rng.Perm(models.NumFeatures)

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0
	n := float64(len(indices))

	for visited, feature := range order {
		if visited >= b.maxFeat && bestFeature >= 0 {
			break
		}

		values := distinctValues(b.features, indices, feature)
		for k := 0; k+1 < len(values); k++ {
			threshold := float64(values[k]+values[k+1]) / 2

			var left, right [models.NumConfidenceLevels]int
			var nl, nr int
			for _, i := range indices {
				if float64(b.features[i][feature]) <= threshold {
					left[b.labels[i]]++
					nl++
				} else {
					right[b.labels[i]]++
					nr++
				}
			}

			impurity := float64(nl)/n*gini(left, nl) + float64(nr)/n*gini(right, nr)
			if bestFeature < 0 || impurity < bestImpurity {
				bestFeature = feature
				bestThreshold = threshold
				bestImpurity = impurity
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func classCounts(labels []int, indices []int) [models.NumConfidenceLevels]int {
	var counts [models.NumConfidenceLevels]int
	for _, i := range indices {
		counts[labels[i]]++
	}
	return counts
}

func isPure(counts [models.NumConfidenceLevels]int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func gini(counts [models.NumConfidenceLevels]int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func distinctValues(features []models.FeatureVector, indices []int, feature int) []int {
	seen := make(map[int]struct{})
	for _, i := range indices {
		seen[features[i][feature]] = struct{}{}
	}
	values := make([]int, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

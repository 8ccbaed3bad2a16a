// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"math/rand/v2"
	"sort"
)

// treeNode is a split or a leaf of a regression tree
type treeNode struct {
	leaf      bool
	value     float64 // Mean target at a leaf
	feature   int
	threshold float64
	left      int
	right     int
}

// regressionTree is a CART tree stored as a flat node slice, root at index 0
type regressionTree struct {
	nodes []treeNode
}

// treeBuilder grows one tree over a bootstrap sample
type treeBuilder struct {
	x               []Features
	y               []float64
	maxDepth        int
	minSamplesSplit int
	nodes           []treeNode
}

// randomForest averages a bag of regression trees
type randomForest struct {
	trees []regressionTree
}

// fitForest grows opts.Trees trees, each on a bootstrap sample drawn from rng.
// Trees are grown in order so the result depends only on the data and the seed.
func fitForest(x []Features, y []float64, opts ForestOptions, rng *rand.Rand) *randomForest {
	forest := &randomForest{trees: make([]regressionTree, 0, opts.Trees)}
	n := len(x)

	for t := 0; t < opts.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}

		b := &treeBuilder{
			x:               x,
			y:               y,
			maxDepth:        opts.MaxDepth,
			minSamplesSplit: opts.MinSamplesSplit,
		}
		b.grow(sample, 0)
		forest.trees = append(forest.trees, regressionTree{nodes: b.nodes})
	}

	return forest
}

// predict returns the mean prediction of every tree
func (f *randomForest) predict(row Features) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, tree := range f.trees {
		sum += tree.predict(row)
	}
	return sum / float64(len(f.trees))
}

func (t regressionTree) predict(row Features) float64 {
	i := 0
	for {
		node := t.nodes[i]
		if node.leaf {
			return node.value
		}
		if row.at(node.feature) <= node.threshold {
			i = node.left
		} else {
			i = node.right
		}
	}
}

// grow appends the subtree for the given sample and returns its node index
func (b *treeBuilder) grow(sample []int, depth int) int {
	index := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{})

	sum, sumSq := 0.0, 0.0
	for _, i := range sample {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(sample))
	mean := sum / n
	parentSSE := sumSq - sum*sum/n

	stop := len(sample) < b.minSamplesSplit ||
		(b.maxDepth > 0 && depth >= b.maxDepth) ||
		parentSSE <= 0

	if !stop {
		if feature, threshold, ok := b.bestSplit(sample, parentSSE); ok {
			var left, right []int
			for _, i := range sample {
				if b.x[i].at(feature) <= threshold {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}

			if len(left) == 0 || len(right) == 0 {
				b.nodes[index] = treeNode{leaf: true, value: mean}
				return index
			}

			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[index] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
			return index
		}
	}

	b.nodes[index] = treeNode{leaf: true, value: mean}
	return index
}

// bestSplit finds the split with the lowest summed squared error across both children.
// Ties keep the first candidate found, scanning features in order and thresholds ascending.
func (b *treeBuilder) bestSplit(sample []int, parentSSE float64) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := parentSSE

	sorted := make([]int, len(sample))
	for f := 0; f < featureCount; f++ {
		copy(sorted, sample)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]].at(f) < b.x[sorted[j]].at(f)
		})

		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			cur, next := b.x[sorted[k]].at(f), b.x[sorted[k+1]].at(f)
			if cur == next {
				continue
			}

			nl := float64(k + 1)
			nr := float64(len(sorted) - k - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

package rope

import (
	"math/bits"
	"sync/atomic"
)

// wordBits is the fan out of every level of the tree.
const wordBits = 64

// kind selects which summary a tree search follows.
type kind uint8

const (
	occupied kind = iota
	free
	kinds
)

// level indexes the tree bottom up. Level 0 is the leaf bitmap with one bit per
// slot, set when the slot is occupied. Every level above summarizes the words of
// the level below with two bitmaps: one bit per child word telling whether it has
// any occupied slot, and one telling whether it has any free slot.
type level int

// tree is a hierarchical bitmap over a fixed number of slots. It is mutated by a
// single owner and may be read concurrently by anyone; readers tolerate seeing a
// summary that is momentarily out of date with the leaves.
type tree struct {
	size   int
	valid  uint64 // mask of usable bits in a leaf word
	leaves []atomic.Uint64
	sums   [][kinds][]atomic.Uint64 // sums[l-1] is level l
}

// newTree returns a tree over size slots, all free. size must be a power of two.
func newTree(size int) *tree {
	t := &tree{
		size:   size,
		valid:  ^uint64(0),
		leaves: make([]atomic.Uint64, (size+wordBits-1)/wordBits),
	}
	if size < wordBits {
		t.valid = 1<<uint(size) - 1
	}

	for n := len(t.leaves); n > 1; {
		children := n
		n = (n + wordBits - 1) / wordBits

		var sum [kinds][]atomic.Uint64
		sum[occupied] = make([]atomic.Uint64, n)
		sum[free] = make([]atomic.Uint64, n)
		for c := 0; c < children; c++ {
			sum[free][c/wordBits].Store(sum[free][c/wordBits].Load() | 1<<uint(c%wordBits))
		}
		t.sums = append(t.sums, sum)
	}

	return t
}

// top is the index of the root level.
func (t *tree) top() level { return level(len(t.sums)) }

// words is the number of words on level l.
func (t *tree) words(l level) int {
	if l == 0 {
		return len(t.leaves)
	}
	return len(t.sums[l-1][occupied])
}

// word loads word i of level l as seen through kind k.
func (t *tree) word(l level, k kind, i int) uint64 {
	if l == 0 {
		w := t.leaves[i].Load()
		if k == free {
			return ^w & t.valid
		}
		return w
	}
	return t.sums[l-1][k][i].Load()
}

// span is the number of slots covered by one bit on level l.
func span(l level) int { return 1 << (6 * uint(l)) }

// mark sets slot i to occupied or free and propagates the change up the levels
// until some level's summary stays the same. Only the owner calls mark.
func (t *tree) mark(i int, isOccupied bool) {
	wi, bit := i/wordBits, uint64(1)<<uint(i%wordBits)

	w := t.leaves[wi].Load()
	if isOccupied {
		w |= bit
	} else {
		w &^= bit
	}
	t.leaves[wi].Store(w)

	child := wi
	for l := level(1); l <= t.top(); l++ {
		changed := false
		for k := kind(0); k < kinds; k++ {
			p := &t.sums[l-1][k][child/wordBits]
			old, sbit := p.Load(), uint64(1)<<uint(child%wordBits)

			next := old &^ sbit
			if t.word(l-1, k, child) != 0 {
				next |= sbit
			}
			if next != old {
				p.Store(next)
				changed = true
			}
		}
		if !changed {
			return
		}
		child /= wordBits
	}
}

// isOccupied reports if slot i is marked occupied.
func (t *tree) isOccupied(i int) bool {
	return t.leaves[i/wordBits].Load()&(1<<uint(i%wordBits)) != 0
}

// any reports if the tree has any slot of kind k.
func (t *tree) any(k kind) bool { return t.word(t.top(), k, 0) != 0 }

// next returns the smallest slot index >= from of kind k, or -1. It climbs from
// the leaf word holding from until some summary word has a candidate bit at or
// after the position, then descends to the leftmost matching leaf.
func (t *tree) next(from int, k kind) int {
	if from < 0 {
		from = 0
	}
	if from >= t.size {
		return -1
	}

	idx := from
	for l := level(0); l <= t.top(); l++ {
		wi := idx / wordBits
		if wi >= t.words(l) {
			return -1
		}
		w := t.word(l, k, wi) &^ (1<<uint(idx%wordBits) - 1)
		if w != 0 {
			return t.descend(l, wi*wordBits+bits.TrailingZeros64(w), k)
		}
		idx = wi + 1
	}

	return -1
}

// descend walks down from bit x on level l to the leftmost leaf of kind k under
// it. A concurrent reader can find an empty child word because the owner updates
// the leaves before the summaries; the search then resumes after the subtree.
func (t *tree) descend(l level, x int, k kind) int {
	for ; l > 0; l-- {
		w := t.word(l-1, k, x)
		if w == 0 {
			return t.next((x+1)*span(l), k)
		}
		x = x*wordBits + bits.TrailingZeros64(w)
	}
	if x >= t.size {
		return -1
	}
	return x
}

// reset marks every slot free. Only the owner calls reset, and only when no
// reader can reach the tree.
func (t *tree) reset() {
	for i := range t.leaves {
		t.leaves[i].Store(0)
	}
	for l := range t.sums {
		for i := range t.sums[l][occupied] {
			t.sums[l][occupied][i].Store(0)
		}
		children := t.words(level(l))
		for i := range t.sums[l][free] {
			var w uint64
			for c := i * wordBits; c < children && c < (i+1)*wordBits; c++ {
				w |= 1 << uint(c%wordBits)
			}
			t.sums[l][free][i].Store(w)
		}
	}
}

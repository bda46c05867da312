package rope

import (
	"fmt"
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/pcg"
)

// checkTree verifies every summary bit agrees with the level below it.
func checkTree(t *testing.T, tr *tree) {
	t.Helper()
	for l := level(1); l <= tr.top(); l++ {
		for k := kind(0); k < kinds; k++ {
			for c := 0; c < tr.words(l-1); c++ {
				want := tr.word(l-1, k, c) != 0
				got := tr.word(l, k, c/wordBits)&(1<<uint(c%wordBits)) != 0
				assert.Equal(t, got, want)
			}
		}
	}
}

func refNext(set []bool, from int, want bool) int {
	for i := from; i < len(set); i++ {
		if set[i] == want {
			return i
		}
	}
	return -1
}

func TestTreeEmpty(t *testing.T) {
	for _, size := range []int{1, 2, 32, 64, 128, 4096, 8192} {
		tr := newTree(size)
		checkTree(t, tr)
		assert.That(t, tr.any(free))
		assert.That(t, !tr.any(occupied))
		assert.Equal(t, tr.next(0, free), 0)
		assert.Equal(t, tr.next(0, occupied), -1)
		assert.Equal(t, tr.next(size-1, free), size-1)
		assert.Equal(t, tr.next(size, free), -1)
	}
}

func TestTreeLevels(t *testing.T) {
	assert.Equal(t, newTree(32).top(), level(0))
	assert.Equal(t, newTree(64).top(), level(0))
	assert.Equal(t, newTree(128).top(), level(1))
	assert.Equal(t, newTree(4096).top(), level(1))
	assert.Equal(t, newTree(8192).top(), level(2))
}

func TestTreeRandom(t *testing.T) {
	for _, size := range []int{1, 32, 64, 256, 4096, 1 << 14} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			rng := pcg.New(uint64(size))
			tr := newTree(size)
			set := make([]bool, size)

			for iter := 0; iter < min(4*size+100, 3000); iter++ {
				i := int(rng.Uint32n(uint32(size)))
				set[i] = !set[i]
				tr.mark(i, set[i])

				from := int(rng.Uint32n(uint32(size)))
				assert.Equal(t, tr.next(from, occupied), refNext(set, from, true))
				assert.Equal(t, tr.next(from, free), refNext(set, from, false))
				assert.Equal(t, tr.isOccupied(i), set[i])
			}
			checkTree(t, tr)

			tr.reset()
			checkTree(t, tr)
			assert.That(t, !tr.any(occupied))
		})
	}
}

func TestTreeFull(t *testing.T) {
	tr := newTree(256)
	for i := 0; i < 256; i++ {
		assert.Equal(t, tr.next(0, free), i)
		tr.mark(i, true)
	}
	assert.That(t, !tr.any(free))
	assert.Equal(t, tr.next(0, free), -1)

	tr.mark(200, false)
	assert.Equal(t, tr.next(0, free), 200)
	assert.Equal(t, tr.next(201, free), -1)
	checkTree(t, tr)
}

func BenchmarkTreeNext(b *testing.B) {
	tr := newTree(1 << 16)
	for i := 0; i < 1<<16-1; i++ {
		tr.mark(i, true)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = tr.next(0, free)
	}
}

package containers

import (
	"iter"
	"math/bits"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// BitSet is a growable set of small non-negative integers with custom
// word granularity.
type BitSet[T constraints.Unsigned] struct {
	words []T
	n     int
	count int
}

// nbit returns the number of bits in T.
func (*BitSet[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of addressable bits.
func (b *BitSet[_]) Len() int { return b.n }

// Count returns the number of set bits.
func (b *BitSet[_]) Count() int { return b.count }

// Resize makes bits [0, n) addressable. Growing appends unset bits.
// Shrinking discards every bit at or past n, set or not.
func (b *BitSet[T]) Resize(n int) {
	if n < 0 {
		n = 0
	}
	nb := b.nbit()
	words := (n + nb - 1) / nb
	if n < b.n {
		for i := n; i < b.n && i < words*nb; i++ {
			b.Unset(i)
		}
		for _, w := range b.words[words:] {
			b.count -= bits.OnesCount64(uint64(w))
		}
		b.words = b.words[:words]
	} else if words > len(b.words) {
		b.words = append(b.words, make([]T, words-len(b.words))...)
	}
	b.n = n
}

// Set sets a given bit. Out of range indices are ignored.
func (b *BitSet[T]) Set(index int) {
	if index < 0 || index >= b.n {
		return
	}
	n := b.nbit()
	i := index / n
	m := T(1) << (index % n)
	if b.words[i]&m == 0 {
		b.words[i] |= m
		b.count++
	}
}

// Unset unsets a given bit. Out of range indices are ignored.
func (b *BitSet[T]) Unset(index int) {
	if index < 0 || index >= b.n {
		return
	}
	n := b.nbit()
	i := index / n
	m := T(1) << (index % n)
	if b.words[i]&m != 0 {
		b.words[i] &^= m
		b.count--
	}
}

// IsSet checks whether a given bit is set.
func (b *BitSet[T]) IsSet(index int) bool {
	if index < 0 || index >= b.n {
		return false
	}
	n := b.nbit()
	return b.words[index/n]&(T(1)<<(index%n)) != 0
}

// Clear unsets every bit in the set.
func (b *BitSet[T]) Clear() {
	if b.count == 0 {
		return
	}
	clear(b.words)
	b.count = 0
}

// All returns an iterator over the set bits in ascending order.
func (b *BitSet[T]) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		n := b.nbit()
		for i, w := range b.words {
			for w != 0 {
				tz := bits.TrailingZeros64(uint64(w))
				if !yield(i*n + tz) {
					return
				}
				w &^= T(1) << tz
			}
		}
	}
}

// Runs returns an iterator over maximal runs of consecutive set bits as
// (first index, length) pairs.
func (b *BitSet[T]) Runs() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		start, length := -1, 0
		for i := range b.All() {
			if start >= 0 && i == start+length {
				length++
				continue
			}
			if start >= 0 && !yield(start, length) {
				return
			}
			start, length = i, 1
		}
		if start >= 0 {
			yield(start, length)
		}
	}
}

// Package pcpuset implements a fixed-universe bitset over physical CPU ids.
//
// The hash-table and red-black-tree container libraries the original scheduler leans on
// are explicitly out of scope (see spec.md §1); pCPU masks are small, dense, and bounded
// by the pool size, so a word-packed bitset over the standard library is the appropriate
// container here — no third-party bitset library appears anywhere in the retrieved pack.
package pcpuset

import "math/bits"

const wordBits = 64

// Set is a bitset over pCPU ids in [0, Size).
type Set struct {
	size  int
	words []uint64
}

// New returns an empty Set over pCPU ids [0, size).
func New(size int) Set {
	if size < 0 {
		size = 0
	}
	return Set{size: size, words: make([]uint64, (size+wordBits-1)/wordBits)}
}

// Full returns a Set over pCPU ids [0, size) with every bit set.
func Full(size int) Set {
	s := New(size)
	for p := 0; p < size; p++ {
		s.Add(p)
	}
	return s
}

// Size returns the universe size this Set was constructed with.
func (s Set) Size() int { return s.size }

// Add sets bit pcpu.
func (s Set) Add(pcpu int) {
	s.words[pcpu/wordBits] |= 1 << uint(pcpu%wordBits)
}

// Remove clears bit pcpu.
func (s Set) Remove(pcpu int) {
	s.words[pcpu/wordBits] &^= 1 << uint(pcpu%wordBits)
}

// Test reports whether pcpu is a member.
func (s Set) Test(pcpu int) bool {
	if pcpu < 0 || pcpu >= s.size {
		return false
	}
	return s.words[pcpu/wordBits]&(1<<uint(pcpu%wordBits)) != 0
}

// IsEmpty reports whether no bits are set.
func (s Set) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Weight returns the number of set bits (population count).
func (s Set) Weight() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := New(s.size)
	copy(out.words, s.words)
	return out
}

// Union returns a new Set containing the members of s and other.
func (s Set) Union(other Set) Set {
	out := New(max(s.size, other.size))
	for i := range out.words {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		out.words[i] = a | b
	}
	return out
}

// Intersect returns a new Set containing members present in both s and other.
func (s Set) Intersect(other Set) Set {
	out := New(max(s.size, other.size))
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		out.words[i] = s.words[i] & other.words[i]
	}
	return out
}

// Intersects reports whether s and other share any member, without allocating.
func (s Set) Intersects(other Set) bool {
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		if s.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// Subset reports whether every member of s is also a member of other.
func (s Set) Subset(other Set) bool {
	for i, w := range s.words {
		var ow uint64
		if i < len(other.words) {
			ow = other.words[i]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and other have identical membership.
func (s Set) Equal(other Set) bool {
	n := max(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// ForEach calls fn once for every member pCPU, in ascending order.
func (s Set) ForEach(fn func(pcpu int)) {
	for wi, w := range s.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			fn(wi*wordBits + bit)
			w &= w - 1
		}
	}
}

// Members returns the sorted slice of member pCPU ids.
func (s Set) Members() []int {
	out := make([]int, 0, s.Weight())
	s.ForEach(func(pcpu int) { out = append(out, pcpu) })
	return out
}

// FromSlice builds a Set of the given universe size containing exactly the listed members.
func FromSlice(size int, members []int) Set {
	s := New(size)
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// FromBitmap builds a Set of the given universe size from a little-endian bitmap, as used
// on the wire in a PutRequest/GetResponse entry's cpumap field.
func FromBitmap(size int, bitmap []uint64) Set {
	s := New(size)
	copy(s.words, bitmap)
	return s
}

// Bitmap returns the little-endian word representation suitable for the wire format.
func (s Set) Bitmap() []uint64 {
	out := make([]uint64, len(s.words))
	copy(out, s.words)
	return out
}

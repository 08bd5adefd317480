package app

import "math/rand/v2"

// codeRetries bounds the collision retry before the allocator widens the
// code. With a 62-symbol alphabet and 6 positions the widening path is
// effectively unreachable until hundreds of millions of rooms are live.
const codeRetries = 8

// CodeAllocator draws group codes uniformly from a fixed alphabet. It is
// stateless; the caller supplies the taken check from inside its own
// critical section so two creates can never race onto one code.
type CodeAllocator struct {
	alphabet string
	length   int
}

func NewCodeAllocator(alphabet string, length int) *CodeAllocator {
	return &CodeAllocator{alphabet: alphabet, length: length}
}

func (a *CodeAllocator) draw(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = a.alphabet[rand.IntN(len(a.alphabet))]
	}
	return string(b)
}

// Allocate returns a code for which taken reports false, retrying on
// collision and widening by two characters if the space looks exhausted.
func (a *CodeAllocator) Allocate(taken func(string) bool) string {
	for i := 0; i < codeRetries; i++ {
		if code := a.draw(a.length); !taken(code) {
			return code
		}
	}
	for {
		if code := a.draw(a.length + 2); !taken(code) {
			return code
		}
	}
}

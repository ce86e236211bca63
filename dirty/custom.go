package dirty

import "fmt"

// CustomAllocator hands out custom bits to one primitive type.
//
// Bits are allocated in order starting at CustomBitsBegin. A bit, once
// returned, keeps its meaning for the lifetime of the allocator, so
// allocators are normally package-level values built at init time.
//
//	var alloc dirty.CustomAllocator
//	var (
//		dirtyIndices     = alloc.Next("indices")
//		dirtyHullIndices = alloc.Next("hullIndices")
//	)
type CustomAllocator struct {
	next  Bits
	names []string
}

// Next returns the next free custom bit and records its name.
// It panics when the custom range is exhausted.
func (a *CustomAllocator) Next(name string) Bits {
	if a.next == 0 {
		a.next = CustomBitsBegin
	}
	if a.next > CustomBitsEnd || a.next < CustomBitsBegin {
		panic(fmt.Sprintf("dirty: custom bit range exhausted allocating %q", name))
	}
	b := a.next
	a.names = append(a.names, name)
	if b == CustomBitsEnd {
		// Sentinel that wraps past the top bit.
		a.next = 1
	} else {
		a.next <<= 1
	}
	return b
}

// Allocated returns the union of every bit handed out so far.
func (a *CustomAllocator) Allocated() Bits {
	var all Bits
	for i := range a.names {
		all |= CustomBitsBegin << i
	}
	return all
}

// Name returns the name a custom bit was allocated under, or "" when the
// bit is not a single allocated custom bit.
func (a *CustomAllocator) Name(b Bits) string {
	for i, name := range a.names {
		if CustomBitsBegin<<i == b {
			return name
		}
	}
	return ""
}

// Describe is like Bits.String but names this allocator's custom bits.
func (a *CustomAllocator) Describe(b Bits) string {
	s := (b.Scene()).String()
	if b.Scene() == Clean {
		s = ""
	}
	for i, name := range a.names {
		if b&(CustomBitsBegin<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	if rest := b.Custom() &^ a.Allocated(); rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("Custom(%#x)", uint32(rest))
	}
	if s == "" {
		return "Clean"
	}
	return s
}

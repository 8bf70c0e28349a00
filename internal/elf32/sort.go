package elf32

import "sort"

// sortSymbols orders symbols by value, then by bind, then by name: the
// ordering the original ELF reader's comparator expresses, with one fix.
//
// The original C++ comparator has a documented bug: it computes both bind
// values from the first symbol being compared instead of one from each side,
// so binding never actually participates in the sort. This implementation
// compares a's bind against b's bind as the ordering was clearly intended to
// work, since a stable address→symbol lookup depends on ties being broken
// deterministically rather than by sort-ignored binding.
func sortSymbols(symbols []*Symbol) {
	sort.SliceStable(symbols, func(i, j int) bool {
		a, b := symbols[i], symbols[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Bind() != b.Bind() {
			return a.Bind() < b.Bind()
		}
		return a.Name < b.Name
	})
}

// SymbolAt returns the symbol with the largest Value <= addr among
// non-zero-valued symbols, together with addr's offset past that symbol's
// Value, for use by a debugger resolving a guest address to a symbol+offset.
// When several symbols share that Value, the first in sort order (the
// lowest-Bind, then lexically-first name) is returned. ok is false when the
// table is empty or addr is below every non-zero symbol Value.
func (f *File) SymbolAt(addr uint32) (sym *Symbol, offset uint32, ok bool) {
	symbols := f.symbols
	// Find the first index whose Value exceeds addr; the candidate run of
	// equal, qualifying Values ends just before it.
	idx := sort.Search(len(symbols), func(i int) bool {
		return symbols[i].Value > addr
	})

	for i := idx - 1; i >= 0; i-- {
		s := symbols[i]
		if s.Value == 0 {
			continue
		}
		// symbols is sorted ascending by Value, so the first non-zero
		// symbol found walking backward from idx-1 is the last in sort
		// order among those sharing that Value; step back to the first.
		for i > 0 && symbols[i-1].Value == s.Value {
			i--
			s = symbols[i]
		}
		return s, addr - s.Value, true
	}
	return nil, 0, false
}

package pool

// Index maps every byte value to the ascending positions where it occurs in
// a pool. Positions for value v live in positions[offsets[v]:offsets[v+1]],
// a counting-sort layout that needs one slice for the whole pool.
type Index struct {
	offsets   [257]uint32
	positions []uint32
}

func buildIndex(b []byte) *Index {
	ix := &Index{positions: make([]uint32, len(b))}
	var counts [256]uint32
	for _, v := range b {
		counts[v]++
	}
	for v := 0; v < 256; v++ {
		ix.offsets[v+1] = ix.offsets[v] + counts[v]
	}
	next := ix.offsets
	for i, v := range b {
		ix.positions[next[v]] = uint32(i)
		next[v]++
	}
	return ix
}

// First returns the lowest position holding v, or false if v never occurs.
func (ix *Index) First(v byte) (int, bool) {
	lo, hi := ix.offsets[v], ix.offsets[int(v)+1]
	if lo == hi {
		return 0, false
	}
	return int(ix.positions[lo]), true
}

// Positions returns the ascending positions holding v. The slice aliases the
// index and must not be modified.
func (ix *Index) Positions(v byte) []uint32 {
	return ix.positions[ix.offsets[v]:ix.offsets[int(v)+1]:ix.offsets[int(v)+1]]
}

// Count returns how many times v occurs.
func (ix *Index) Count(v byte) int {
	return int(ix.offsets[int(v)+1] - ix.offsets[v])
}

// Complete reports whether every byte value 0-255 occurs at least once.
func (ix *Index) Complete() bool {
	for v := 0; v < 256; v++ {
		if ix.offsets[v] == ix.offsets[v+1] {
			return false
		}
	}
	return true
}

// Package diff computes an ordered edit script between two sequences of
// node keys. It reports maximal runs of matching contiguous elements and
// classifies the gaps between them, which is what the control-tree
// reconciler needs to translate child list changes into host commands.
package diff

// Op classifies a run of an edit script.
type Op uint8

const (
	OpEqual   Op = iota // run unchanged in both sequences
	OpDelete            // run present only in the old sequence
	OpInsert            // run present only in the new sequence
	OpReplace           // old run substituted by a new run in place
)

// String returns the string representation of the Op.
func (op Op) String() string {
	switch op {
	case OpEqual:
		return "equal"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	case OpReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Opcode describes one run of the edit script: a[A1:A2] relates to b[B1:B2]
// per Tag. Opcodes are contiguous: the first starts at (0, 0), each next
// one starts where the previous ended, and the last ends at (len(a), len(b)).
type Opcode struct {
	Tag            Op
	A1, A2, B1, B2 int
}

// match is a maximal run of identical elements: a[A:A+Size] == b[B:B+Size].
type match struct {
	A, B, Size int
}

// Opcodes aligns the old sequence a with the new sequence b and returns the
// edit script transforming a into b. Ties between equal-length matches are
// broken toward the earliest position in a, then in b, so the script is
// deterministic for any input.
func Opcodes(a, b []uint64) []Opcode {
	var ops []Opcode
	i, j := 0, 0
	for _, m := range matchingBlocks(a, b) {
		tag := Op(0)
		set := false
		switch {
		case i < m.A && j < m.B:
			tag, set = OpReplace, true
		case i < m.A:
			tag, set = OpDelete, true
		case j < m.B:
			tag, set = OpInsert, true
		}
		if set {
			ops = append(ops, Opcode{Tag: tag, A1: i, A2: m.A, B1: j, B2: m.B})
		}
		i, j = m.A+m.Size, m.B+m.Size
		if m.Size > 0 {
			ops = append(ops, Opcode{Tag: OpEqual, A1: m.A, A2: i, B1: m.B, B2: j})
		}
	}
	return ops
}

// matchingBlocks returns the maximal matching runs between a and b in
// ascending order, terminated by a zero-size sentinel at (len(a), len(b)).
// Adjacent blocks are coalesced.
func matchingBlocks(a, b []uint64) []match {
	// positions of each element in b, for the inner loop of longestMatch
	b2j := make(map[uint64][]int, len(b))
	for j, v := range b {
		b2j[v] = append(b2j[v], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}

	var matched []match
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		m := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if m.Size == 0 {
			continue
		}
		matched = append(matched, m)
		if s.alo < m.A && s.blo < m.B {
			queue = append(queue, span{s.alo, m.A, s.blo, m.B})
		}
		if m.A+m.Size < s.ahi && m.B+m.Size < s.bhi {
			queue = append(queue, span{m.A + m.Size, s.ahi, m.B + m.Size, s.bhi})
		}
	}
	sortMatches(matched)

	// coalesce adjacent blocks and append the sentinel
	var blocks []match
	for _, m := range matched {
		n := len(blocks)
		if n > 0 && blocks[n-1].A+blocks[n-1].Size == m.A && blocks[n-1].B+blocks[n-1].Size == m.B {
			blocks[n-1].Size += m.Size
			continue
		}
		blocks = append(blocks, m)
	}
	return append(blocks, match{A: len(a), B: len(b)})
}

// longestMatch finds the longest run with a[A:A+Size] == b[B:B+Size],
// A in [alo, ahi) and B in [blo, bhi). Of equal-length candidates it picks
// the one starting earliest in a, then earliest in b.
func longestMatch(a []uint64, b2j map[uint64][]int, alo, ahi, blo, bhi int) match {
	best := match{A: alo, B: blo}
	// j2len[j] = length of the longest run ending at a[i-1], b[j-1]
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.Size {
				best = match{A: i - k + 1, B: j - k + 1, Size: k}
			}
		}
		j2len = next
	}
	return best
}

// sortMatches orders matches by position in a. Insertion sort: the queue
// discipline above yields mostly ordered output and block counts are small.
func sortMatches(ms []match) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].A < ms[j-1].A; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

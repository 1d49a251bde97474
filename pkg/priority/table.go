package priority

// Table holds at most one candidate per rank.
type Table[T any] struct {
	slots [NumRanks]*T
}

// Place stores v at p's rank. Disabled priorities are ignored. An occupied rank is
// never overwritten; Place reports whether v was stored.
func (t *Table[T]) Place(p Priority, v T) bool {
	r, ok := p.Rank()
	if !ok || t.slots[r] != nil {
		return false
	}
	t.slots[r] = &v
	return true
}

// At returns the candidate stored at rank r, if any.
func (t *Table[T]) At(r Rank) (T, bool) {
	var zero T
	if r > MaxRank || t.slots[r] == nil {
		return zero, false
	}
	return *t.slots[r], true
}

// First returns the candidate with the lowest populated rank.
func (t *Table[T]) First() (T, Rank, bool) {
	for r := range t.slots {
		if t.slots[r] != nil {
			return *t.slots[r], Rank(r), true
		}
	}
	var zero T
	return zero, 0, false
}

// Len returns the number of populated ranks.
func (t *Table[T]) Len() int {
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

package priority

// Validate reports whether a set of priorities is a usable configuration:
// at least one is enabled and no two enabled priorities share a rank.
func Validate(priorities ...Priority) bool {
	var seen [NumRanks]bool
	enabled := 0
	for _, p := range priorities {
		r, ok := p.Rank()
		if !ok {
			continue
		}
		if seen[r] {
			return false
		}
		seen[r] = true
		enabled++
	}
	return enabled > 0
}

// ValidateRaw applies Validate to signed wire encodings, additionally
// rejecting enabled ranks above MaxRank.
func ValidateRaw(raw ...int8) bool {
	priorities := make([]Priority, 0, len(raw))
	for _, r := range raw {
		p, err := FromRaw(r)
		if err != nil {
			return false
		}
		priorities = append(priorities, p)
	}
	return Validate(priorities...)
}

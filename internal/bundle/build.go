package bundle

// Build groups namedA/namedB and matched into a Family under policy,
// using groups as the source-of-grouping data (compiland or source
// file membership). groups is ignored for the None policy.
func Build(policy Policy, groups []Group, namedA, namedB []NamedFunction, matched []MatchedFunction) Family {
	if policy == None {
		fam := buildSingle(namedA, namedB)
		fam.Refresh(namedA, namedB, matched)
		return fam
	}

	indexA := indexByName(namedA)
	indexB := indexByName(namedB)
	visited := make(map[string]bool, len(namedA)+len(namedB))

	bundles := make([]*Bundle, 0, len(groups))
	anyEmpty := false
	for _, g := range groups {
		b := &Bundle{Name: g.Name}
		for _, name := range g.Members {
			visited[name] = true
			routeSymbol(b, name, indexA, indexB, namedA, namedB)
		}
		if len(b.MatchedIndices) == 0 && len(b.UnmatchedIndices[0]) == 0 && len(b.UnmatchedIndices[1]) == 0 {
			anyEmpty = true
		}
		bundles = append(bundles, b)
	}

	leftover := &Bundle{Name: "all"}
	seen := make(map[string]bool, len(namedA)+len(namedB))
	route := func(list []NamedFunction) {
		for i := range list {
			name := list[i].SymbolName
			if visited[name] || seen[name] {
				continue
			}
			seen[name] = true
			routeSymbol(leftover, name, indexA, indexB, namedA, namedB)
		}
	}
	route(namedA)
	route(namedB)

	hasLeftover := len(leftover.MatchedIndices) != 0 || len(leftover.UnmatchedIndices[0]) != 0 || len(leftover.UnmatchedIndices[1]) != 0
	// The grouping source is authoritative only when every declared
	// bundle found at least one member; otherwise leftover symbols are
	// surfaced in the catch-all rather than silently dropped.
	if hasLeftover && anyEmpty {
		bundles = append(bundles, leftover)
	}

	fam := Family{Policy: policy, Bundles: bundles}
	fam.Refresh(namedA, namedB, matched)
	return fam
}

func buildSingle(namedA, namedB []NamedFunction) Family {
	b := &Bundle{Name: "all"}
	seenMatch := make(map[int]bool)
	for side, list := range [2][]NamedFunction{namedA, namedB} {
		for i, n := range list {
			if n.IsMatched() {
				if !seenMatch[n.MatchedIndex] {
					seenMatch[n.MatchedIndex] = true
					b.MatchedIndices = append(b.MatchedIndices, n.MatchedIndex)
				}
			} else {
				b.UnmatchedIndices[side] = append(b.UnmatchedIndices[side], i)
			}
		}
	}
	return Family{Policy: None, Bundles: []*Bundle{b}}
}

func indexByName(named []NamedFunction) map[string]int {
	m := make(map[string]int, len(named))
	for i, n := range named {
		m[n.SymbolName] = i
	}
	return m
}

// routeSymbol looks name up in both sides' name tables and appends its
// index to b's matched or the appropriate unmatched-per-side list. A
// name present on both sides is, by construction of the matching
// phase, always matched, so it is only ever appended once.
func routeSymbol(b *Bundle, name string, indexA, indexB map[string]int, namedA, namedB []NamedFunction) {
	if idx, ok := indexA[name]; ok {
		if n := namedA[idx]; n.IsMatched() {
			b.MatchedIndices = append(b.MatchedIndices, n.MatchedIndex)
		} else {
			b.UnmatchedIndices[0] = append(b.UnmatchedIndices[0], idx)
		}
		return
	}
	if idx, ok := indexB[name]; ok {
		if n := namedB[idx]; n.IsMatched() {
			b.MatchedIndices = append(b.MatchedIndices, n.MatchedIndex)
		} else {
			b.UnmatchedIndices[1] = append(b.UnmatchedIndices[1], idx)
		}
	}
}

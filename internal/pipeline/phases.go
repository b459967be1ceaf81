package pipeline

import (
	"context"
	"fmt"

	"loov.dev/asmdiff/internal/asminst"
	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/bundle"
	"loov.dev/asmdiff/internal/execreader"
	"loov.dev/asmdiff/internal/report"
	"loov.dev/asmdiff/internal/symdb"
)

// BuildMatchedFunctions is phase 1: it pairs symbols from ReaderA and
// ReaderB by exact name and builds the NamedFunctions/MatchedFunctions
// vectors. Call Rebuild first if this has run before.
func (c *Coordinator) BuildMatchedFunctions() error {
	if !c.ExecutablesLoaded() {
		return fmt.Errorf("pipeline: BuildMatchedFunctions: both executables must be loaded")
	}

	symsA := c.ReaderA.Symbols()
	symsB := c.ReaderB.Symbols()

	c.namedA = make([]bundle.NamedFunction, len(symsA))
	c.namedB = make([]bundle.NamedFunction, len(symsB))
	c.nameIndexA = make(map[string]int, len(symsA))
	c.nameIndexB = make(map[string]int, len(symsB))

	for i, s := range symsA {
		c.namedA[i] = bundle.NamedFunction{SymbolName: s.Name, MatchedIndex: bundle.Unmatched}
		c.nameIndexA[s.Name] = i
	}
	for i, s := range symsB {
		c.namedB[i] = bundle.NamedFunction{SymbolName: s.Name, MatchedIndex: bundle.Unmatched}
		c.nameIndexB[s.Name] = i
	}

	c.matched = nil
	for i, s := range symsA {
		j, ok := c.nameIndexB[s.Name]
		if !ok {
			continue
		}
		idx := len(c.matched)
		c.matched = append(c.matched, bundle.MatchedFunction{Name: s.Name})
		c.namedA[i].MatchedIndex = idx
		c.namedB[j].MatchedIndex = idx
	}

	if len(c.matched) == 0 {
		c.warn("no common symbols found between %s and %s", describeReader(c.ReaderA), describeReader(c.ReaderB))
	}
	return nil
}

func describeReader(r execreader.Reader) string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("reader with %d symbols", len(r.Symbols()))
}

// BuildBundles is phase 2: it builds (or returns the already-built)
// BundleFamily for policy on demand. groups is the source-of-grouping
// data for Compiland/SourceFile policies; it is ignored for None. When
// groups is nil and a Database is configured, it is derived from
// Database.Compilands()/SourceFiles() instead of leaving the policy
// without any grouping data.
func (c *Coordinator) BuildBundles(policy bundle.Policy, groups []bundle.Group) *bundle.Family {
	if fam, ok := c.families[policy]; ok {
		return fam
	}
	if groups == nil {
		groups = c.groupsFromDatabase(policy)
	}
	built := bundle.Build(policy, groups, c.namedA, c.namedB, c.matched)
	c.families[policy] = &built
	return &built
}

// groupsFromDatabase converts the Symbol/Source Database's compiland or
// source-file groups (which name members by function id) into
// bundle.Group (which names members by decorated symbol name, the key
// the Bundler routes on), for the policy that needs them. It returns
// nil for None, or when no Database is configured.
func (c *Coordinator) groupsFromDatabase(policy bundle.Policy) []bundle.Group {
	if c.Database == nil {
		return nil
	}

	var dbGroups []symdb.Group
	switch policy {
	case bundle.Compiland:
		dbGroups = c.Database.Compilands()
	case bundle.SourceFile:
		dbGroups = c.Database.SourceFiles()
	default:
		return nil
	}

	functions := c.Database.Functions()
	groups := make([]bundle.Group, 0, len(dbGroups))
	for _, g := range dbGroups {
		members := make([]string, 0, len(g.FunctionIDs))
		for _, id := range g.FunctionIDs {
			if id < 0 || id >= len(functions) {
				continue
			}
			members = append(members, functions[id].DecoratedName)
		}
		groups = append(groups, bundle.Group{Name: g.Name, Members: members})
	}
	return groups
}

// symbolFor returns the execreader.Symbol backing named function index
// i on the given side, by re-resolving through the reader's name
// table; this keeps the Coordinator from needing its own parallel
// address-indexed copy of each side's symbol table.
func (c *Coordinator) symbolFor(side int, i int) execreader.Symbol {
	if side == 0 {
		return c.ReaderA.GetSymbol(c.namedA[i].SymbolName)
	}
	return c.ReaderB.GetSymbol(c.namedB[i].SymbolName)
}

// Disassemble is phase 3: every NamedFunction not yet disassembled, on
// both sides, gets its instruction stream populated. Functions whose
// symbol the reader cannot resolve, or whose symbol size is 0, are
// skipped and stay undisassembled. Work items run
// concurrently; every write to namedA/namedB happens back on this
// goroutine once a work item completes.
func (c *Coordinator) Disassemble(ctx context.Context, workers int) error {
	if c.Disasm == nil {
		return fmt.Errorf("pipeline: Disassemble: no Disassembler configured")
	}
	d := newDispatcher(workers)

	var items []func(context.Context) (func(), bool)
	items = append(items, c.disassembleSideItems(0, c.namedA, c.ReaderA)...)
	items = append(items, c.disassembleSideItems(1, c.namedB, c.ReaderB)...)

	d.submit(ctx, items)
	return ctx.Err()
}

func (c *Coordinator) disassembleSideItems(side int, named []bundle.NamedFunction, reader execreader.Reader) []func(context.Context) (func(), bool) {
	var items []func(context.Context) (func(), bool)
	base := reader.CodeSection().Address
	code := reader.CodeBytes()

	for i := range named {
		if named[i].Function.IsDisassembled() {
			continue
		}
		i := i
		sym := c.symbolFor(side, i)
		if sym.Name == "" || sym.Size == 0 {
			continue
		}
		setup := DisassembleSetup{Format: c.Format, Mode: c.Mode, SymbolAt: c.symbolNameAt}
		items = append(items, func(ctx context.Context) (func(), bool) {
			select {
			case <-ctx.Done():
				return nil, false
			default:
			}
			stream := c.Disasm.Disassemble(setup, code, base, sym.Address, sym.Address+sym.Size)
			return func() { c.applyDisassembly(side, i, stream) }, true
		})
	}
	return items
}

func (c *Coordinator) applyDisassembly(side, i int, stream asminst.Stream) {
	named := c.namedSlice(side)
	named[i].Function.Instructions = stream
	if !named[i].IsMatched() {
		return
	}
	c.matched[named[i].MatchedIndex].FunctionPair[side].Instructions = stream
}

func (c *Coordinator) namedSlice(side int) []bundle.NamedFunction {
	if side == 0 {
		return c.namedA
	}
	return c.namedB
}

// symbolNameAt resolves an address to a known symbol's raw name on
// whichever side's code section contains it, for operand substitution.
func (c *Coordinator) symbolNameAt(addr uint64) string {
	if c.ReaderA.CodeSection().Contains(addr) {
		for _, s := range c.ReaderA.Symbols() {
			if s.Address == addr {
				return s.Name
			}
		}
	}
	if c.ReaderB.CodeSection().Contains(addr) {
		for _, s := range c.ReaderB.Symbols() {
			if s.Address == addr {
				return s.Name
			}
		}
	}
	return ""
}

// LinkSourceFiles is phase 4: associates each NamedFunction with a
// source file and line ranges using Database, when one is configured.
// With no Database, every function is left with CanLinkToSourceFile
// false (MissingData, recovered locally per the error taxonomy).
func (c *Coordinator) LinkSourceFiles() {
	if c.Database == nil {
		markUnlinkable(c.namedA)
		markUnlinkable(c.namedB)
		return
	}

	byName := make(map[string]int, len(c.Database.Functions()))
	for i, fn := range c.Database.Functions() {
		byName[fn.DecoratedName] = i
	}

	link := func(named []bundle.NamedFunction, side int) {
		for i := range named {
			idx, ok := byName[named[i].SymbolName]
			if !ok {
				named[i].Function.CanLinkToSourceFile = false
				continue
			}
			fn := c.Database.Functions()[idx]
			named[i].Function.CanLinkToSourceFile = true
			named[i].Function.SourceFileName = fn.SourceFile
			named[i].Function.LineRanges = fn.LineRanges
			if len(fn.LineRanges) > 0 {
				named[i].Function.SourceLineNumber = uint32(fn.LineRanges[0].From)
			}
			if named[i].IsMatched() {
				c.matched[named[i].MatchedIndex].FunctionPair[side].SourceFileName = fn.SourceFile
				c.matched[named[i].MatchedIndex].FunctionPair[side].CanLinkToSourceFile = true
				c.matched[named[i].MatchedIndex].FunctionPair[side].LineRanges = fn.LineRanges
				if len(fn.LineRanges) > 0 {
					c.matched[named[i].MatchedIndex].FunctionPair[side].SourceLineNumber = uint32(fn.LineRanges[0].From)
				}
			}
		}
	}
	link(c.namedA, 0)
	link(c.namedB, 1)
}

func markUnlinkable(named []bundle.NamedFunction) {
	for i := range named {
		named[i].Function.CanLinkToSourceFile = false
	}
}

// LoadSourceFiles is phase 5: content-addressed load of every distinct
// linked source file into the shared file-content cache.
func (c *Coordinator) LoadSourceFiles() error {
	loadSide := func(named []bundle.NamedFunction, side int) error {
		for i := range named {
			name := named[i].Function.SourceFileName
			if name == "" {
				continue
			}
			if _, err := c.cache.Load(name); err != nil {
				c.warn("loading source file %q: %v", name, err)
				continue
			}
			named[i].Function.HasLoadedSourceFile = true
			if named[i].IsMatched() {
				c.matched[named[i].MatchedIndex].FunctionPair[side].HasLoadedSourceFile = true
			}
		}
		return nil
	}
	if err := loadSide(c.namedA, 0); err != nil {
		return err
	}
	return loadSide(c.namedB, 1)
}

// SourceFileContent returns the cached content of name, or nil if it
// hasn't been loaded.
func (c *Coordinator) SourceFileContent(name string) *report.TextFileContent {
	return c.cache.Find(name)
}

// FlushSourceFiles discards cached source file content other than
// keep, per the "at most 2 files live" rule between SourceFile bundles.
func (c *Coordinator) FlushSourceFiles(keep ...string) {
	c.cache.Flush(keep...)
}

// Compare is phase 6: runs the Alignment Engine for each matched
// function index in indices that hasn't been compared yet.
func (c *Coordinator) Compare(ctx context.Context, workers int, indices []int) error {
	d := newDispatcher(workers)

	var items []func(context.Context) (func(), bool)
	for _, idx := range indices {
		idx := idx
		if idx < 0 || idx >= len(c.matched) || c.matched[idx].IsCompared() {
			continue
		}
		a := c.matched[idx].FunctionPair[0].Instructions
		b := c.matched[idx].FunctionPair[1].Instructions
		cfg := c.Align
		items = append(items, func(ctx context.Context) (func(), bool) {
			select {
			case <-ctx.Done():
				return nil, false
			default:
			}
			result := asmmatch.Align(a, b, cfg)
			return func() { c.matched[idx].Comparison = result }, true
		})
	}

	d.submit(ctx, items)
	return ctx.Err()
}

// Refresh recomputes every built BundleFamily's progress counters by
// rescanning members; call after a phase affecting completion state.
func (c *Coordinator) Refresh() {
	for _, fam := range c.families {
		fam.Refresh(c.namedA, c.namedB, c.matched)
	}
}

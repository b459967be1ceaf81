// Package pipeline drives the phased build that turns two loaded
// executables into compared, bundled function diffs: pairing by
// symbol name, disassembling, linking and loading source files, and
// running the alignment engine, with readiness gates a caller (a CLI
// or UI) can poll between phases.
package pipeline

import (
	"loov.dev/asmdiff/internal/asminst"
	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/bundle"
	"loov.dev/asmdiff/internal/execreader"
	"loov.dev/asmdiff/internal/symdb"
)

// DisassembleSetup carries the per-call configuration the Disassembler
// needs: the target syntax, processor mode, and a symbol resolver used
// to substitute known names into branch-target operands.
type DisassembleSetup struct {
	Format   asminst.Format
	Mode     int
	SymbolAt func(addr uint64) string
}

// Disassembler is the narrow Disassembler interface the Coordinator
// drives during the Disassemble phase; internal/disasmx86 is the
// concrete adapter.
type Disassembler interface {
	Disassemble(setup DisassembleSetup, code []byte, base, start, end uint64) asminst.Stream
}

// Coordinator owns the NamedFunctions/MatchedFunctions vectors and
// drives them through the phases in order. It is single-threaded:
// Disassemble and Compare dispatch concurrent work items to a worker
// pool, but every write to shared state happens back on the goroutine
// that called the phase method.
type Coordinator struct {
	ReaderA, ReaderB execreader.Reader
	Database         symdb.Database // optional; nil means no source linking
	Disasm           Disassembler
	Format           asminst.Format
	Mode             int // processor mode in bits, forwarded to the Disassembler

	Strictness asmmatch.Strictness
	Align      asmmatch.Config

	// Warn receives diagnostics for recoverable ParseError/MissingData
	// conditions the Coordinator can't surface as a return value.
	Warn func(format string, args ...any)

	revision int

	namedA, namedB []bundle.NamedFunction
	matched        []bundle.MatchedFunction

	nameIndexA, nameIndexB map[string]int

	families map[bundle.Policy]*bundle.Family

	cache fileContentCache
}

// NewCoordinator builds a Coordinator ready to run BuildMatchedFunctions.
func NewCoordinator(readerA, readerB execreader.Reader, disasm Disassembler) *Coordinator {
	return &Coordinator{
		ReaderA:  readerA,
		ReaderB:  readerB,
		Disasm:   disasm,
		families: make(map[bundle.Policy]*bundle.Family),
		cache:    newFileContentCache(),
	}
}

func (c *Coordinator) warn(format string, args ...any) {
	if c.Warn != nil {
		c.Warn(format, args...)
	}
}

// ExecutablesLoaded reports whether both readers are set.
func (c *Coordinator) ExecutablesLoaded() bool {
	return c.ReaderA != nil && c.ReaderB != nil
}

// NamedFunctionsBuilt reports whether BuildMatchedFunctions has run
// since the last Rebuild.
func (c *Coordinator) NamedFunctionsBuilt() bool {
	return c.namedA != nil || c.namedB != nil
}

// MatchedFunctionsBuilt is an alias of NamedFunctionsBuilt: pairing and
// named-function construction happen together in one phase.
func (c *Coordinator) MatchedFunctionsBuilt() bool {
	return c.NamedFunctionsBuilt()
}

// BundlesReady reports whether the BundleFamily for policy has been
// built since the last Rebuild.
func (c *Coordinator) BundlesReady(policy bundle.Policy) bool {
	_, ok := c.families[policy]
	return ok
}

// Family returns the BundleFamily for policy, building it on demand
// through BuildBundles. It does not check MatchedFunctionsBuilt.
func (c *Coordinator) Family(policy bundle.Policy, groups []bundle.Group) *bundle.Family {
	return c.BuildBundles(policy, groups)
}

// Rebuild marks every downstream phase stale and resets progress
// counters, without discarding the readers/database/disassembler
// configuration or any caller-selected UI state kept outside the
// Coordinator.
func (c *Coordinator) Rebuild() {
	c.revision++
	c.namedA = nil
	c.namedB = nil
	c.matched = nil
	c.nameIndexA = nil
	c.nameIndexB = nil
	c.families = make(map[bundle.Policy]*bundle.Family)
	c.cache = newFileContentCache()
}

// Revision is bumped on every Rebuild; callers can use it to detect
// that previously-fetched results are stale.
func (c *Coordinator) Revision() int {
	return c.revision
}

// HasAsyncWork reports whether any phase has outstanding work given
// the current state. A caller polls this between dispatch calls that
// use a worker pool (Disassemble, Compare); this engine runs those
// phases synchronously to completion, so it is always false once a
// phase method returns, but the hook is kept for a caller that wants
// to dispatch across multiple idle-loop ticks.
func (c *Coordinator) HasAsyncWork() bool {
	return false
}

// NamedFunctions returns the side-indexed NamedFunctions vectors. The
// caller must not mutate the returned slices.
func (c *Coordinator) NamedFunctions() (a, b []bundle.NamedFunction) {
	return c.namedA, c.namedB
}

// MatchedFunctions returns the MatchedFunctions vector. The caller must
// not mutate the returned slice.
func (c *Coordinator) MatchedFunctions() []bundle.MatchedFunction {
	return c.matched
}

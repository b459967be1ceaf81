// Package execreader defines the narrow view the pipeline needs of a
// loaded executable: its exported symbols and code section. Concrete
// binary-format parsing lives in internal/execfmt.
package execreader

// Symbol is one entry from an executable's symbol table.
type Symbol struct {
	Name    string // exact decorated/mangled name, used for pairing
	Address uint64
	Size    uint64
}

// Section is an address range, used here to filter symbols down to
// ones that live in executable code.
type Section struct {
	Address uint64
	Size    uint64
}

// Contains reports whether addr falls within the section.
func (s Section) Contains(addr uint64) bool {
	return addr >= s.Address && addr < s.Address+s.Size
}

// Reader is the Executable Reader interface the pipeline consumes. An
// empty-Name Symbol is the "not found" sentinel for GetSymbol.
type Reader interface {
	Symbols() []Symbol
	CodeSection() Section
	GetSymbol(name string) Symbol
	// CodeBytes returns the raw bytes backing CodeSection, so the
	// Disassembler can slice out an individual function's range.
	CodeBytes() []byte
	// DisplayName returns name demangled for presentation, or name
	// itself if it doesn't demangle. Pairing always uses the raw
	// Symbol.Name; this is for the Formatter only.
	DisplayName(name string) string
}

// Package execfmt is the concrete Executable Reader adapter: it opens
// an ELF, Mach-O, or PE file and exposes its code section and symbol
// table through the execreader.Reader interface.
package execfmt

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
	"sort"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"loov.dev/asmdiff/internal/execreader"
)

// File is a loaded executable. The zero value is not usable; build one
// with Open.
type File struct {
	path      string
	symbols   []execreader.Symbol
	byName    map[string]execreader.Symbol
	code      execreader.Section
	codeBytes []byte
	demangle  sync.Map // mangled name -> demangled display name, memoized
}

var _ execreader.Reader = (*File)(nil)

// Open detects the object format by magic bytes and loads its code
// section and symbol table. The returned File satisfies
// execreader.Reader.
func Open(path string) (*File, error) {
	if elfFile, err := elf.Open(path); err == nil {
		defer elfFile.Close()
		return newFromELF(path, elfFile)
	}
	if machoFile, err := macho.Open(path); err == nil {
		defer machoFile.Close()
		return newFromMachO(path, machoFile)
	}
	if peFile, err := pe.Open(path); err == nil {
		defer peFile.Close()
		return newFromPE(path, peFile)
	}
	return nil, fmt.Errorf("execfmt: %s is not a recognized ELF, Mach-O, or PE executable", path)
}

func newFile(path string, code execreader.Section, codeBytes []byte, symbols []execreader.Symbol) *File {
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Address < symbols[j].Address })
	byName := make(map[string]execreader.Symbol, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s
	}
	return &File{path: path, code: code, codeBytes: codeBytes, symbols: symbols, byName: byName}
}

// Symbols returns every symbol restricted to the executable's code
// section, ordered by address.
func (f *File) Symbols() []execreader.Symbol {
	return f.symbols
}

// CodeSection returns the address range symbols were filtered against.
func (f *File) CodeSection() execreader.Section {
	return f.code
}

// CodeBytes returns the raw bytes backing CodeSection.
func (f *File) CodeBytes() []byte {
	return f.codeBytes
}

// GetSymbol looks up name, returning the empty-Name sentinel if absent.
func (f *File) GetSymbol(name string) execreader.Symbol {
	return f.byName[name]
}

// DisplayName demangles name for presentation to the Formatter; it
// never affects pairing, which stays name-exact on the decorated name.
// Names that don't demangle (C symbols, or anything demangle.Filter
// can't parse) are returned unchanged.
func (f *File) DisplayName(name string) string {
	if cached, ok := f.demangle.Load(name); ok {
		return cached.(string)
	}
	display := demangle.Filter(name, demangle.NoClones)
	f.demangle.Store(name, display)
	return display
}

func inCodeSection(code execreader.Section, symbols []execreader.Symbol) []execreader.Symbol {
	var filtered []execreader.Symbol
	for _, s := range symbols {
		if code.Contains(s.Address) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

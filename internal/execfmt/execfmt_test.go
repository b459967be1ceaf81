package execfmt

import (
	"testing"

	"loov.dev/asmdiff/internal/execreader"
)

func TestInCodeSection_FiltersByAddress(t *testing.T) {
	code := execreader.Section{Address: 0x1000, Size: 0x100}
	symbols := []execreader.Symbol{
		{Name: "in_range", Address: 0x1010},
		{Name: "before", Address: 0x0ff0},
		{Name: "after", Address: 0x1100},
		{Name: "boundary_start", Address: 0x1000},
	}

	got := inCodeSection(code, symbols)
	if len(got) != 2 {
		t.Fatalf("got %d symbols, want 2: %+v", len(got), got)
	}
	names := map[string]bool{got[0].Name: true, got[1].Name: true}
	if !names["in_range"] || !names["boundary_start"] {
		t.Fatalf("unexpected filtered set: %+v", got)
	}
}

func TestFile_GetSymbol_UnknownReturnsEmptySentinel(t *testing.T) {
	f := newFile("test", execreader.Section{}, nil, nil)
	got := f.GetSymbol("nonexistent")
	if got.Name != "" {
		t.Fatalf("expected empty-name sentinel, got %+v", got)
	}
}

func TestFile_DisplayName_CachesAndPassesThroughCSymbols(t *testing.T) {
	f := newFile("test", execreader.Section{}, nil, nil)

	plain := f.DisplayName("memcpy")
	if plain != "memcpy" {
		t.Fatalf("expected an un-mangled C name to pass through, got %q", plain)
	}

	mangled := "_ZN3foo3barEv"
	first := f.DisplayName(mangled)
	second := f.DisplayName(mangled)
	if first != second {
		t.Fatalf("expected a memoized demangled result, got %q then %q", first, second)
	}
}

func TestFile_SymbolsSortedByAddress(t *testing.T) {
	f := newFile("test", execreader.Section{Address: 0, Size: 1 << 20}, nil, []execreader.Symbol{
		{Name: "b", Address: 200},
		{Name: "a", Address: 100},
	})
	syms := f.Symbols()
	if len(syms) != 2 || syms[0].Name != "a" || syms[1].Name != "b" {
		t.Fatalf("expected symbols sorted by ascending address, got %+v", syms)
	}
}

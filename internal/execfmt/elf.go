package execfmt

import (
	"debug/elf"
	"fmt"

	"loov.dev/asmdiff/internal/execreader"
)

func newFromELF(path string, f *elf.File) (*File, error) {
	var code execreader.Section
	var codeBytes []byte
	for _, sec := range f.Sections {
		if sec.Flags&elf.SHF_EXECINSTR != 0 {
			code = execreader.Section{Address: sec.Addr, Size: sec.Size}
			data, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("execfmt: reading code section: %w", err)
			}
			codeBytes = data
			break
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		// Stripped binaries have no symbol table; an empty symbol list
		// is valid input, not a load failure.
		syms = nil
	}

	symbols := make([]execreader.Symbol, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Name == "" {
			continue
		}
		symbols = append(symbols, execreader.Symbol{Name: s.Name, Address: s.Value, Size: s.Size})
	}

	return newFile(path, code, codeBytes, inCodeSection(code, symbols)), nil
}

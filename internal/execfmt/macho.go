package execfmt

import (
	"debug/macho"
	"fmt"

	"loov.dev/asmdiff/internal/execreader"
)

// nSect mirrors the Mach-O nlist N_SECT constant (0x0e), which is not
// exported by debug/macho.
const nSect = 0x0e

func newFromMachO(path string, f *macho.File) (*File, error) {
	var code execreader.Section
	var codeBytes []byte
	for _, sec := range f.Sections {
		if sec.Name == "__text" {
			code = execreader.Section{Address: sec.Addr, Size: sec.Size}
			data, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("execfmt: reading code section: %w", err)
			}
			codeBytes = data
			break
		}
	}

	var symbols []execreader.Symbol
	if f.Symtab != nil {
		for _, s := range f.Symtab.Syms {
			if s.Name == "" || s.Type&0x0e != nSect {
				continue
			}
			symbols = append(symbols, execreader.Symbol{Name: s.Name, Address: s.Value})
		}
	}

	return newFile(path, code, codeBytes, inCodeSection(code, symbols)), nil
}

package execfmt

import (
	"debug/pe"
	"fmt"

	"loov.dev/asmdiff/internal/execreader"
)

func newFromPE(path string, f *pe.File) (*File, error) {
	var code execreader.Section
	var codeBytes []byte
	imageBase := peImageBase(f)
	for _, sec := range f.Sections {
		if sec.Characteristics&0x20000000 != 0 { // IMAGE_SCN_MEM_EXECUTE
			code = execreader.Section{Address: imageBase + uint64(sec.VirtualAddress), Size: uint64(sec.VirtualSize)}
			data, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("execfmt: reading code section: %w", err)
			}
			codeBytes = data
			break
		}
	}

	symbols := make([]execreader.Symbol, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		if s.Name == "" || s.SectionNumber <= 0 {
			continue
		}
		symbols = append(symbols, execreader.Symbol{Name: s.Name, Address: imageBase + uint64(s.Value)})
	}

	return newFile(path, code, codeBytes, inCodeSection(code, symbols)), nil
}

func peImageBase(f *pe.File) uint64 {
	switch h := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(h.ImageBase)
	case *pe.OptionalHeader64:
		return h.ImageBase
	default:
		return 0
	}
}

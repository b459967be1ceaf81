package symdb

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"

	"loov.dev/asmdiff/internal/srcline"
)

// DWARFDatabase is a Database backed by the DWARF debug info embedded
// in an ELF, Mach-O, or PE executable.
type DWARFDatabase struct {
	functions   []FunctionInfo
	compilands  []Group
	sourceFiles []Group
}

var _ Database = (*DWARFDatabase)(nil)

// OpenDWARF loads and indexes the DWARF debug info of the executable
// at path. A file with no DWARF section is not an error: the resulting
// Database simply has no functions.
func OpenDWARF(path string) (*DWARFDatabase, error) {
	data, err := openDWARFData(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &DWARFDatabase{}, nil
	}
	return indexDWARF(data)
}

func openDWARFData(path string) (*dwarf.Data, error) {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		d, err := f.DWARF()
		if err != nil {
			return nil, nil
		}
		return d, nil
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		d, err := f.DWARF()
		if err != nil {
			return nil, nil
		}
		return d, nil
	}
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		d, err := f.DWARF()
		if err != nil {
			return nil, nil
		}
		return d, nil
	}
	return nil, fmt.Errorf("symdb: %s is not a recognized ELF, Mach-O, or PE executable", path)
}

func indexDWARF(data *dwarf.Data) (*DWARFDatabase, error) {
	db := &DWARFDatabase{}
	compilandFuncs := map[string][]int{}
	sourceFuncs := map[string][]int{}

	reader := data.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("symdb: reading DWARF entries: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		cuName, _ := entry.Val(dwarf.AttrName).(string)
		lr, err := data.LineReader(entry)
		if err != nil {
			lr = nil
		}

		funcIDs := indexCompileUnit(data, reader, lr, &db.functions, sourceFuncs)
		if cuName != "" {
			compilandFuncs[cuName] = append(compilandFuncs[cuName], funcIDs...)
		}
	}

	for name, ids := range compilandFuncs {
		db.compilands = append(db.compilands, Group{Name: name, FunctionIDs: ids})
	}
	for name, ids := range sourceFuncs {
		db.sourceFiles = append(db.sourceFiles, Group{Name: name, FunctionIDs: ids})
	}
	return db, nil
}

// indexCompileUnit walks the subprogram DIEs directly nested under the
// compile unit entry just read from reader, appending a FunctionInfo
// per named subprogram and returning the resulting function indices.
func indexCompileUnit(data *dwarf.Data, reader *dwarf.Reader, lr *dwarf.LineReader, functions *[]FunctionInfo, sourceFuncs map[string][]int) []int {
	var ids []int
	for {
		entry, err := reader.Next()
		if err != nil || entry == nil {
			return ids
		}
		if entry.Tag == 0 {
			// end of the compile unit's children
			return ids
		}
		if entry.Tag != dwarf.TagSubprogram {
			reader.SkipChildren()
			continue
		}

		name, _ := entry.Val(dwarf.AttrName).(string)
		if name == "" {
			reader.SkipChildren()
			continue
		}

		lowPC, _ := entry.Val(dwarf.AttrLowpc).(uint64)
		highPC, _ := highPC(entry, lowPC)

		var lineSet srcline.Set
		sourceFile := ""
		if lr != nil {
			var le dwarf.LineEntry
			for lr.Next(&le) == nil {
				if le.Address >= lowPC && le.Address < highPC {
					lineSet.Add(le.Line)
					if sourceFile == "" && le.File != nil {
						sourceFile = le.File.Name
					}
				}
			}
			lr.Reset()
		}

		idx := len(*functions)
		*functions = append(*functions, FunctionInfo{
			DecoratedName: name,
			LineRanges:    lineSet.RangesZero(),
			SourceFile:    sourceFile,
		})
		if sourceFile != "" {
			sourceFuncs[sourceFile] = append(sourceFuncs[sourceFile], idx)
		}
		ids = append(ids, idx)
		reader.SkipChildren()
	}
}

func highPC(entry *dwarf.Entry, lowPC uint64) (uint64, bool) {
	v := entry.Val(dwarf.AttrHighpc)
	switch n := v.(type) {
	case uint64:
		// DWARF4+ often encodes highpc as an offset from lowpc.
		if n < lowPC {
			return lowPC + n, true
		}
		return n, true
	case int64:
		return lowPC + uint64(n), true
	default:
		return lowPC, false
	}
}

// Functions returns every indexed function, in discovery order; the
// slice index is the function id referenced by Compilands/SourceFiles.
func (db *DWARFDatabase) Functions() []FunctionInfo { return db.functions }

// Compilands returns one Group per compile unit.
func (db *DWARFDatabase) Compilands() []Group { return db.compilands }

// SourceFiles returns one Group per distinct source file a function's
// line program entries resolved to.
func (db *DWARFDatabase) SourceFiles() []Group { return db.sourceFiles }

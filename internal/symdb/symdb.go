// Package symdb defines the Symbol/Source Database interface the
// pipeline's LinkSourceFiles phase consumes, plus a concrete adapter
// backed by DWARF debug info.
package symdb

import "loov.dev/asmdiff/internal/srcline"

// FunctionInfo is one function's debug-info record: its decorated name
// and the source line ranges its instructions span.
type FunctionInfo struct {
	DecoratedName string
	LineRanges    []srcline.Range
	SourceFile    string
}

// Group is a named collection of function indices: a single compiland
// (translation unit) or a single source file.
type Group struct {
	Name        string
	FunctionIDs []int
}

// Database is the Symbol/Source Database interface consumed by the
// pipeline. It is optional: a nil Database means no functions can be
// linked to source, and every NamedFunction ends up with
// CanLinkToSourceFile == false.
type Database interface {
	Functions() []FunctionInfo
	Compilands() []Group
	SourceFiles() []Group
}

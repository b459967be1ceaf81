package bundle

import (
	"testing"

	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/asminst"
)

func disassembled() asminst.Stream {
	return asminst.Stream{asminst.NewInstruction(asminst.Instruction{Text: "ret"})}
}

// buildMatchedTrio sets up three matched functions f, g, h, each
// disassembled on both sides, matching the bundling scenario.
func buildMatchedTrio() (namedA, namedB []NamedFunction, matched []MatchedFunction) {
	names := []string{"f", "g", "h"}
	for i, name := range names {
		matched = append(matched, MatchedFunction{
			Name:         name,
			FunctionPair: [2]Function{{Instructions: disassembled()}, {Instructions: disassembled()}},
		})
		namedA = append(namedA, NamedFunction{SymbolName: name, MatchedIndex: i, Function: Function{Instructions: disassembled()}})
		namedB = append(namedB, NamedFunction{SymbolName: name, MatchedIndex: i, Function: Function{Instructions: disassembled()}})
	}
	return namedA, namedB, matched
}

func TestBuild_SourceFileScenario(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()
	groups := []Group{
		{Name: "src1", Members: []string{"f", "g"}},
		{Name: "src2", Members: []string{"h"}},
	}

	fam := Build(SourceFile, groups, namedA, namedB, matched)
	if len(fam.Bundles) != 2 {
		t.Fatalf("got %d bundles, want 2", len(fam.Bundles))
	}
	if got := len(fam.Bundles[0].MatchedIndices); got != 2 {
		t.Errorf("src1 matched count = %d, want 2", got)
	}
	if got := len(fam.Bundles[1].MatchedIndices); got != 1 {
		t.Errorf("src2 matched count = %d, want 1", got)
	}
}

func TestBuild_NonePolicy(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()

	fam := Build(None, nil, namedA, namedB, matched)
	if len(fam.Bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(fam.Bundles))
	}
	b := fam.Bundles[0]
	if b.Name != "all" {
		t.Errorf("bundle name = %q, want %q", b.Name, "all")
	}
	if len(b.MatchedIndices) != 3 {
		t.Errorf("matched count = %d, want 3", len(b.MatchedIndices))
	}
}

func TestBuild_LeftoverGoesToCatchAll_WhenSomeBundleEmpty(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()
	groups := []Group{
		{Name: "src1", Members: []string{"f"}},
		{Name: "empty-group", Members: nil},
	}

	fam := Build(SourceFile, groups, namedA, namedB, matched)
	// src1, empty-group, and the catch-all "all" holding g and h.
	if len(fam.Bundles) != 3 {
		t.Fatalf("got %d bundles, want 3", len(fam.Bundles))
	}
	all := fam.Bundles[len(fam.Bundles)-1]
	if all.Name != "all" {
		t.Fatalf("last bundle name = %q, want %q", all.Name, "all")
	}
	if len(all.MatchedIndices) != 2 {
		t.Errorf("catch-all matched count = %d, want 2", len(all.MatchedIndices))
	}
}

func TestBuild_LeftoverDiscarded_WhenGroupingIsAuthoritative(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()
	groups := []Group{
		{Name: "src1", Members: []string{"f", "g"}},
		{Name: "src2", Members: []string{"h"}},
	}
	// Add an extra unmatched function that appears in no group.
	namedA = append(namedA, NamedFunction{SymbolName: "orphan", MatchedIndex: Unmatched})

	fam := Build(SourceFile, groups, namedA, namedB, matched)
	if len(fam.Bundles) != 2 {
		t.Fatalf("got %d bundles, want 2 (orphan discarded, no catch-all)", len(fam.Bundles))
	}
}

func TestBundle_CompletionPredicates(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()
	// Every pair can be linked to a source file, but none has been yet.
	for i := range matched {
		matched[i].FunctionPair[0].CanLinkToSourceFile = true
		matched[i].FunctionPair[1].CanLinkToSourceFile = true
	}
	fam := Build(None, nil, namedA, namedB, matched)
	b := fam.Bundles[0]

	if !b.HasCompletedDisassembling() {
		t.Fatal("expected disassembling complete: all three pairs have instructions")
	}
	if b.HasCompletedSourceFileLinking() {
		t.Fatal("no function has been linked yet")
	}
	if b.HasCompletedComparison() {
		t.Fatal("no function has been compared yet")
	}

	for i := range matched {
		matched[i].Comparison = asmmatch.Result{MatchCount: 1, Records: []asmmatch.Record{{}}}
	}
	fam.Refresh(namedA, namedB, matched)
	if !b.HasCompletedComparison() {
		t.Fatal("expected comparison complete after populating every Comparison")
	}
}

func TestBundle_UpdateComparedCount_IncrementsComparedNotLinked(t *testing.T) {
	namedA, namedB, matched := buildMatchedTrio()
	matched[0].Comparison = asmmatch.Result{MatchCount: 1, Records: []asmmatch.Record{{}}}

	fam := Build(None, nil, namedA, namedB, matched)
	b := fam.Bundles[0]

	if b.Progress.Compared != 1 {
		t.Errorf("Compared = %d, want 1", b.Progress.Compared)
	}
	if b.Progress.LinkedSource != 0 {
		t.Errorf("LinkedSource = %d, want 0 (comparing must not touch the link counter)", b.Progress.LinkedSource)
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{
		"compiland":  Compiland,
		"SourceFile": SourceFile,
		"none":       None,
		"garbage":    None,
	}
	for in, want := range cases {
		if got := ParsePolicy(in, nil); got != want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", in, got, want)
		}
	}
}

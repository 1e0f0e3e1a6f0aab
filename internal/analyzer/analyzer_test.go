package analyzer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mergemap/internal/types"
	"mergemap/internal/util/jsonutil"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAggregateScenario(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.ts":      `import {x} from "./b"` + "\n" + `class Foo { bar(){} }`,
		"README.md": "hello",
	})

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	wantDeps := map[string][]string{"a.ts": {"./b"}}
	if !reflect.DeepEqual(report.Dependencies, wantDeps) {
		t.Fatalf("dependencies = %v, want %v", report.Dependencies, wantDeps)
	}
	wantPatterns := []types.PatternFinding{{Type: "class", Name: "Foo", Methods: []string{"bar"}}}
	if !reflect.DeepEqual(report.Patterns, wantPatterns) {
		t.Fatalf("patterns = %+v, want %+v", report.Patterns, wantPatterns)
	}
	wantDocs := map[string]string{"README.md": "hello"}
	if !reflect.DeepEqual(report.Documentation, wantDocs) {
		t.Fatalf("documentation = %v, want %v", report.Documentation, wantDocs)
	}
	if report.Structure == nil || len(report.Structure) != 0 {
		t.Fatalf("structure must be an empty map, got %v", report.Structure)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}
}

func TestAggregateKeySetsMatchClassification(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.ts":      "",
		"b.js":      "const x = 1;",
		"doc.md":    "d",
		"notes.txt": "n",
		"img.png":   "\x89PNG",
	})

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for _, p := range []string{"a.ts", "b.js"} {
		if _, ok := report.Dependencies[p]; !ok {
			t.Errorf("missing dependencies entry for %s", p)
		}
	}
	for _, p := range []string{"doc.md", "notes.txt"} {
		if _, ok := report.Documentation[p]; !ok {
			t.Errorf("missing documentation entry for %s", p)
		}
	}
	if len(report.Dependencies) != 2 || len(report.Documentation) != 2 {
		t.Fatalf("key sets wrong: deps=%v docs=%v", report.Dependencies, report.Documentation)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/one.ts": `import "./two"` + "\n" + `class A { x(){} y(){} }`,
		"src/two.ts": `class B { z(){} }`,
		"README.md":  "docs",
	})

	// Caching disabled so the second run exercises the full pipeline.
	a := newAnalyzer(t, Options{Workers: 4})
	first, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	b1, err := jsonutil.MarshalNoEscape(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := jsonutil.MarshalNoEscape(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("reports differ:\n%s\n%s", b1, b2)
	}
}

func TestAggregateMalformedFileDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"good.ts":   `import {a} from "./dep"` + "\n" + `class Good { run(){} }`,
		"broken.js": `class )))`,
	})

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if _, ok := report.Dependencies["good.ts"]; !ok {
		t.Fatal("valid file missing from dependencies")
	}
	if _, ok := report.Dependencies["broken.js"]; ok {
		t.Fatal("malformed file must be skipped from dependencies")
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", report.Warnings)
	}
	w := report.Warnings[0]
	if w.Path != "broken.js" || w.Kind != "parse" {
		t.Fatalf("warning = %+v", w)
	}
}

func TestAggregateUnreadableFileBecomesReadWarning(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"ok.ts": "class Ok { run(){} }",
	})
	// A dangling symlink survives the walk but fails at read time.
	if err := os.Symlink(filepath.Join(dir, "gone.ts"), filepath.Join(dir, "bad.ts")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", report.Warnings)
	}
	w := report.Warnings[0]
	if w.Path != "bad.ts" || w.Kind != "read" {
		t.Fatalf("warning = %+v", w)
	}
	if _, ok := report.Dependencies["bad.ts"]; ok {
		t.Fatal("unreadable file must be skipped from dependencies")
	}
	if _, ok := report.Dependencies["ok.ts"]; !ok {
		t.Fatal("sibling file missing from dependencies")
	}
	if len(report.Patterns) != 1 || report.Patterns[0].Name != "Ok" {
		t.Fatalf("patterns = %+v", report.Patterns)
	}
}

func TestAggregateImportCountAndOrder(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"m.ts": `import "./a"` + "\n" + `import "./b"` + "\n" + `import "./a"`,
	})

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []string{"./a", "./b", "./a"}
	if !reflect.DeepEqual(report.Dependencies["m.ts"], want) {
		t.Fatalf("imports = %v, want %v", report.Dependencies["m.ts"], want)
	}
}

func TestAggregateMissingRootIsNotFound(t *testing.T) {
	a := newAnalyzer(t, Options{})
	_, err := a.Aggregate(context.Background(), filepath.Join(t.TempDir(), "nope"))
	var nf *types.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAggregateCancelledContextReturnsPartial(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.ts": "class A {}", "b.ts": "class B {}"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newAnalyzer(t, Options{})
	report, err := a.Aggregate(ctx, dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !report.Partial {
		t.Fatal("report must be tagged partial after cancellation")
	}
}

func TestAggregateCacheHitsOnUnchangedTree(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.ts": "class A { m(){} }"})

	a := newAnalyzer(t, Options{CacheSize: 8})
	first, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Fatal("expected cached report pointer on unchanged tree")
	}
}

func TestAggregatePatternsFollowFileDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.ts": "class First { f(){} }",
		"z.ts": "class Last { l(){} }",
	})

	a := newAnalyzer(t, Options{Workers: 8})
	report, err := a.Aggregate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Patterns) != 2 || report.Patterns[0].Name != "First" || report.Patterns[1].Name != "Last" {
		t.Fatalf("patterns out of order: %+v", report.Patterns)
	}
}

package integrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mergemap/internal/analyzer"
	"mergemap/internal/repofetch"
	"mergemap/internal/runstore"
	"mergemap/internal/types"
)

type fakeLLM struct {
	strategy string
	lastIn   any
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, input any) (json.RawMessage, error) {
	f.lastIn = input
	raw, err := json.Marshal(map[string]string{"merge_strategy": f.strategy})
	return raw, err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func newTestService(t *testing.T, llm *fakeLLM) *Service {
	t.Helper()
	anlz, err := analyzer.New(analyzer.Options{})
	require.NoError(t, err)
	return &Service{
		Fetcher:  &repofetch.Fetcher{ReposRoot: t.TempDir()},
		Analyzer: anlz,
		LLM:      llm,
		Runs:     runstore.New(),
		Watcher:  NewWatcher(),
	}
}

func TestIntegrateEndToEnd(t *testing.T) {
	source := writeTree(t, map[string]string{
		"a.ts":      `import "./b";` + "\n" + `class Alpha { run() {} }`,
		"README.md": "source tree",
	})
	target := writeTree(t, map[string]string{
		"main.js": `class Beta { constructor() {} }`,
	})

	llm := &fakeLLM{strategy: "move Alpha next to Beta"}
	svc := newTestService(t, llm)

	result, err := svc.Integrate(context.Background(), source, target, "")
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, "move Alpha next to Beta", result.MergeStrategy)

	require.Equal(t, []string{"./b"}, result.SourceAnalysis.Dependencies["a.ts"])
	require.Equal(t, "source tree", result.SourceAnalysis.Documentation["README.md"])
	require.Len(t, result.TargetAnalysis.Patterns, 1)
	require.Equal(t, "Beta", result.TargetAnalysis.Patterns[0].Name)

	run, err := svc.Runs.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Equal(t, runstore.StatusComplete, run.Status)
	require.NotNil(t, run.FinishedAt)
}

func TestIntegratePublishesStages(t *testing.T) {
	source := writeTree(t, map[string]string{"a.ts": "class A {}"})
	target := writeTree(t, map[string]string{"b.ts": "class B {}"})

	svc := newTestService(t, &fakeLLM{strategy: "noop"})

	result, err := svc.Integrate(context.Background(), source, target, "")
	require.NoError(t, err)

	history, _, cancel := svc.Watcher.Subscribe(result.RunID)
	defer cancel()

	stages := make([]string, 0, len(history))
	for _, ev := range history {
		stages = append(stages, ev.Stage)
	}
	require.Equal(t, []string{"fetch", "analyze", "generate", "complete"}, stages)
}

func TestIntegrateMissingSourceFails(t *testing.T) {
	target := writeTree(t, map[string]string{"b.ts": "class B {}"})

	svc := newTestService(t, &fakeLLM{strategy: "unused"})

	_, err := svc.Integrate(context.Background(), filepath.Join(t.TempDir(), "missing"), target, "")
	require.Error(t, err)

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"mergemap/internal/extract"
	"mergemap/internal/parser"
	"mergemap/internal/safeio"
	"mergemap/internal/scan"
	"mergemap/internal/types"
)

// Options tune one Analyzer. Zero values pick sensible defaults.
type Options struct {
	// Workers caps the per-file worker pool. <=0 uses GOMAXPROCS.
	Workers int
	// ParseTimeout bounds a single file's parse on pathological inputs.
	ParseTimeout time.Duration
	// CacheSize enables an in-memory LRU of finished reports keyed by a
	// fingerprint of the tree listing. 0 disables caching.
	CacheSize int
}

// Analyzer turns a directory tree into an AnalysisReport.
type Analyzer struct {
	parser       *parser.Parser
	workers      int
	parseTimeout time.Duration
	cache        *lru.Cache[string, *types.AnalysisReport]
}

func New(opts Options) (*Analyzer, error) {
	a := &Analyzer{
		parser:       parser.New(),
		workers:      opts.Workers,
		parseTimeout: opts.ParseTimeout,
	}
	if a.parseTimeout <= 0 {
		a.parseTimeout = 10 * time.Second
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *types.AnalysisReport](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	return a, nil
}

// fileResult is one worker's output for a single file. Each slot is written
// by exactly one worker, so the merge phase needs no extra locking.
type fileResult struct {
	imports  []string
	patterns []types.PatternFinding
	docText  string
	warning  *types.Warning
	done     bool
}

// Aggregate is the sole entry point of the analysis core. It lists the tree,
// processes every source and documentation file, and folds the findings into
// one immutable report.
//
// Per-file parse and read failures are contained: the file is skipped and a
// warning is recorded on the report. A missing root aborts with
// *types.NotFoundError. Context cancellation abandons unvisited files and
// returns the partial report tagged partial instead of an error.
func (a *Analyzer) Aggregate(ctx context.Context, rootDir string) (*types.AnalysisReport, error) {
	sfs, err := safeio.New(rootDir)
	if err != nil {
		return nil, err
	}
	files, err := scan.List(sfs)
	if err != nil {
		return nil, err
	}

	key := ""
	if a.cache != nil {
		key = fingerprint(files)
		if report, ok := a.cache.Get(key); ok {
			return report, nil
		}
	}

	report := a.run(ctx, sfs, files)
	if a.cache != nil && !report.Partial {
		a.cache.Add(key, report)
	}
	return report, nil
}

func (a *Analyzer) run(ctx context.Context, sfs *safeio.SafeFS, files []scan.File) *types.AnalysisReport {
	workers := a.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers <= 0 {
			workers = 1
		}
	}

	results := make([]fileResult, len(files))
	tasks := make(chan int, 256)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-tasks:
					if !ok {
						return
					}
					a.processOne(ctx, sfs, files[i], &results[i])
				}
			}
		}()
	}

feed:
	for i, f := range files {
		if f.Kind == scan.KindIgnored {
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()

	// Merge single-threaded in original file order so patterns and warnings
	// keep the discovery order regardless of worker completion order.
	report := types.NewAnalysisReport()
	for i, f := range files {
		res := &results[i]
		if f.Kind == scan.KindIgnored {
			continue
		}
		if !res.done {
			report.Partial = true
			continue
		}
		if res.warning != nil {
			report.Warnings = append(report.Warnings, *res.warning)
			continue
		}
		switch f.Kind {
		case scan.KindSource:
			imports := res.imports
			if imports == nil {
				imports = []string{}
			}
			report.Dependencies[f.Path] = imports
			report.Patterns = append(report.Patterns, res.patterns...)
		case scan.KindDoc:
			report.Documentation[f.Path] = res.docText
		}
	}
	if ctx.Err() != nil {
		report.Partial = true
	}
	if report.Partial {
		log.Printf("analyzer: partial report for %s (%d files listed)", sfs.Root(), len(files))
	}
	return report
}

func (a *Analyzer) processOne(ctx context.Context, sfs *safeio.SafeFS, f scan.File, res *fileResult) {
	defer func() { res.done = true }()

	raw, err := sfs.ReadFile(f.Path)
	if err != nil {
		res.warning = &types.Warning{Path: f.Path, Kind: "read", Message: (&types.ReadError{Path: f.Path, Err: err}).Error()}
		return
	}

	if f.Kind == scan.KindDoc {
		res.docText = string(raw)
		return
	}

	pctx, cancel := context.WithTimeout(ctx, a.parseTimeout)
	defer cancel()
	tree, err := a.parser.Parse(pctx, f.Path, raw)
	if err != nil {
		res.warning = &types.Warning{Path: f.Path, Kind: "parse", Message: err.Error()}
		return
	}
	defer tree.Close()

	findings := extract.Extract(tree)
	res.imports = findings.Imports
	res.patterns = findings.Patterns
}

// fingerprint hashes the tree listing (paths, sizes, mtimes) so unchanged
// trees hit the report cache.
func fingerprint(files []scan.File) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00%d\n", f.Path, f.Kind, f.Size, f.ModTime.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mergemap/internal/analyzer"
	"mergemap/internal/repofetch"
	"mergemap/internal/util/jsonutil"
)

// analyze runs the analysis core against a single tree and prints the
// report, without the service or the planner in the loop.
func main() {
	location := flag.String("repo", "", "local path or git URL of the tree to analyze")
	branch := flag.String("branch", "", "branch to clone for remote locations")
	reposRoot := flag.String("repos", "repos", "directory remote repositories are cloned into")
	out := flag.String("out", "", "write the report to this file instead of stdout")
	workers := flag.Int("workers", 0, "per-file worker count (0 = GOMAXPROCS)")
	timeout := flag.Duration("timeout", 0, "overall analysis deadline (0 = none)")
	flag.Parse()
	if *location == "" {
		log.Fatal("--repo is required")
	}

	_ = godotenv.Load()

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	fetcher := &repofetch.Fetcher{ReposRoot: *reposRoot}
	dir, err := fetcher.Fetch(ctx, *location, *branch)
	if err != nil {
		log.Fatal(err)
	}

	anlz, err := analyzer.New(analyzer.Options{Workers: *workers})
	if err != nil {
		log.Fatal(err)
	}

	started := time.Now()
	report, err := anlz.Aggregate(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("analyzed %s in %s (%d source files, %d patterns, %d warnings)",
		dir, time.Since(started).Round(time.Millisecond),
		len(report.Dependencies), len(report.Patterns), len(report.Warnings))
	if report.Partial {
		log.Println("report is partial: deadline hit before every file was visited")
	}

	raw, err := jsonutil.MarshalNoEscapeIndent(report, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	raw = append(raw, '\n')

	if *out == "" {
		os.Stdout.Write(raw)
		return
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Println("report written →", *out)
}

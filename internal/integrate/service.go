package integrate

import (
	"context"
	"fmt"
	"log"
	"sync"

	"mergemap/internal/analyzer"
	"mergemap/internal/artifact"
	"mergemap/internal/llmclient"
	"mergemap/internal/planner"
	"mergemap/internal/repofetch"
	"mergemap/internal/runstore"
	"mergemap/internal/types"
)

// Service drives one integration request end to end: fetch both locations,
// analyze both trees, ask the planner for a merge strategy, and persist the
// outcome. The analysis core stays oblivious to all of this.
type Service struct {
	Fetcher   *repofetch.Fetcher
	Analyzer  *analyzer.Analyzer
	LLM       llmclient.LLMClient
	Runs      *runstore.Store
	Artifacts *artifact.S3Store // optional
	Watcher   *Watcher
}

// Result is the outward-facing payload of one integration run.
type Result struct {
	RunID          string                `json:"runId"`
	SourceAnalysis *types.AnalysisReport `json:"sourceAnalysis"`
	TargetAnalysis *types.AnalysisReport `json:"targetAnalysis"`
	MergeStrategy  string                `json:"mergeStrategy"`
}

// Integrate runs the whole pipeline. Collaborator and root errors are
// surfaced verbatim; per-file analysis problems arrive as report warnings,
// never as a silently shrunken report.
func (s *Service) Integrate(ctx context.Context, sourceLocation, targetLocation, branch string) (*Result, error) {
	run, err := s.Runs.Begin(ctx, sourceLocation, targetLocation, branch)
	if err != nil {
		return nil, err
	}
	if s.Watcher != nil {
		s.Watcher.open(run.ID)
		defer s.Watcher.close(run.ID)
	}

	result, err := s.execute(ctx, run.ID, sourceLocation, targetLocation, branch)
	if err != nil {
		s.publish(run.ID, "error", err.Error())
		if ferr := s.Runs.Finish(ctx, run.ID, runstore.StatusError, err.Error()); ferr != nil {
			log.Printf("integrate: finish %s: %v", run.ID, ferr)
		}
		return nil, err
	}

	s.publish(run.ID, "complete", "")
	if ferr := s.Runs.Finish(ctx, run.ID, runstore.StatusComplete, ""); ferr != nil {
		log.Printf("integrate: finish %s: %v", run.ID, ferr)
	}
	return result, nil
}

func (s *Service) execute(ctx context.Context, runID, sourceLocation, targetLocation, branch string) (*Result, error) {
	s.publish(runID, "fetch", fmt.Sprintf("fetching %s and %s", sourceLocation, targetLocation))
	sourceDir, err := s.Fetcher.Fetch(ctx, sourceLocation, branch)
	if err != nil {
		return nil, err
	}
	targetDir, err := s.Fetcher.Fetch(ctx, targetLocation, branch)
	if err != nil {
		return nil, err
	}

	// The two trees have no cross dependency, so analyze them in parallel.
	s.publish(runID, "analyze", "analyzing both trees")
	var (
		wg           sync.WaitGroup
		sourceReport *types.AnalysisReport
		targetReport *types.AnalysisReport
		srcErr       error
		targetErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceReport, srcErr = s.Analyzer.Aggregate(ctx, sourceDir)
	}()
	go func() {
		defer wg.Done()
		targetReport, targetErr = s.Analyzer.Aggregate(ctx, targetDir)
	}()
	wg.Wait()
	if srcErr != nil {
		return nil, srcErr
	}
	if targetErr != nil {
		return nil, targetErr
	}

	s.publish(runID, "generate", "requesting merge strategy")
	strategy, err := planner.MergeStrategy(ctx, s.LLM, sourceReport, targetReport)
	if err != nil {
		return nil, err
	}

	if s.Artifacts != nil {
		if err := s.storeArtifacts(ctx, runID, sourceReport, targetReport, strategy); err != nil {
			// Artifact upload is best-effort; the caller still gets the result.
			log.Printf("integrate: artifacts %s: %v", runID, err)
		}
	}

	return &Result{
		RunID:          runID,
		SourceAnalysis: sourceReport,
		TargetAnalysis: targetReport,
		MergeStrategy:  strategy,
	}, nil
}

func (s *Service) storeArtifacts(ctx context.Context, runID string, source, target *types.AnalysisReport, strategy string) error {
	if err := s.Artifacts.PutReport(ctx, runID, artifact.SourceReportName, source); err != nil {
		return err
	}
	if err := s.Artifacts.PutReport(ctx, runID, artifact.TargetReportName, target); err != nil {
		return err
	}
	return s.Artifacts.PutStrategy(ctx, runID, strategy)
}

func (s *Service) publish(runID, stage, message string) {
	if s.Watcher == nil {
		return
	}
	s.Watcher.Publish(Event{RunID: runID, Stage: stage, Message: message})
}

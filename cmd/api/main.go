package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"mergemap/internal/analyzer"
	"mergemap/internal/artifact"
	"mergemap/internal/config"
	"mergemap/internal/integrate"
	"mergemap/internal/llmclient"
	"mergemap/internal/repofetch"
	"mergemap/internal/runstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	anlz, err := analyzer.New(analyzer.Options{
		Workers:      cfg.Analyzer.Workers,
		ParseTimeout: cfg.Analyzer.ParseTimeout,
		CacheSize:    cfg.Analyzer.CacheSize,
	})
	if err != nil {
		log.Fatalf("analyzer: %v", err)
	}

	llm, err := llmclient.NewGeminiClient(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	defer llm.Close()

	runs := runstore.NewFromDSN(cfg.Runs.PostgresDSN)
	defer runs.Close()

	var artifacts *artifact.S3Store
	if cfg.Artifact.Enabled {
		artifacts, err = artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			log.Fatalf("artifact store: %v", err)
		}
	}

	watcher := integrate.NewWatcher()
	svc := &integrate.Service{
		Fetcher:   &repofetch.Fetcher{ReposRoot: cfg.Repos.Root},
		Analyzer:  anlz,
		LLM:       llm,
		Runs:      runs,
		Artifacts: artifacts,
		Watcher:   watcher,
	}

	api := &apiServer{svc: svc, runs: runs, artifacts: artifacts, watcher: watcher}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.handleHealthz)
	mux.HandleFunc("/api/integrate", api.handleIntegrate)
	mux.HandleFunc("/api/runs/", api.handleRun)
	mux.HandleFunc("/api/watch", api.handleWatchWS)

	// Simple CORS middleware
	h := http.Handler(mux)
	h = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	}(h)

	log.Printf("Starting API server on %s", cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

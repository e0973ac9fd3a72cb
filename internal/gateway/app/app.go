package app

import (
	"context"
	"fmt"
	"log"

	"enveye/internal/collector"
	"enveye/internal/evidence"
	"enveye/internal/gateway/config"
	"enveye/internal/gateway/handler"
	"enveye/internal/gateway/server"
	"enveye/internal/llm"
	"enveye/internal/session"
	"enveye/internal/snapshot"
)

type App struct {
	server *server.Server
	llm    llm.Client
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	store, err := snapshot.NewFromEnv(cfg.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init snapshot store: %w", err)
	}

	cli, err := llm.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init llm client: %w", err)
	}
	log.Printf("diagnosis backend: %s", cli.Name())

	feedback := session.NewFeedbackStoreFromEnv(cfg.FeedbackPath)
	backend := session.NewLLMBackend(cli, feedback)
	registry := session.NewRegistry()

	var ocr evidence.TextExtractor
	if cfg.OCREndpoint != "" {
		ocr = evidence.NewHTTPExtractor(cfg.OCREndpoint)
	}
	gather := evidence.New(ocr, evidence.NewLocalLogReader())

	remote := collector.New(collector.AgentPaths{
		Windows: cfg.AgentPathWindows,
		Linux:   cfg.AgentPathLinux,
	})

	snapshotHandler := handler.NewSnapshotHandler(store)
	diagnosisHandler := handler.NewDiagnosisHandler(registry, backend, gather)
	evidenceHandler := handler.NewEvidenceHandler(ocr, evidence.NewLocalLogReader())
	collectHandler := handler.NewCollectHandler(remote, store)

	// Routing & Server
	mux := server.NewMux(snapshotHandler, diagnosisHandler, evidenceHandler, collectHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		llm:    cli,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.llm != nil {
		_ = a.llm.Close()
	}
	return a.server.Shutdown(ctx)
}

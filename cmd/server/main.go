// Command server hosts the clinical-order-to-FHIR pipeline behind a
// gin HTTP API. It is a thin demonstration adapter: the pipeline core
// itself never serves HTTP (spec §1).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/api"
	"github.com/nlfhir/orderpipeline/internal/bundleassembler"
	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/config"
	"github.com/nlfhir/orderpipeline/internal/consolidation"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/internal/escalation"
	"github.com/nlfhir/orderpipeline/internal/fhirfactory"
	"github.com/nlfhir/orderpipeline/internal/llmextract"
	"github.com/nlfhir/orderpipeline/internal/metrics"
	"github.com/nlfhir/orderpipeline/internal/nlp"
	"github.com/nlfhir/orderpipeline/internal/pipeline"
	"github.com/nlfhir/orderpipeline/internal/validator"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

// unconfiguredLLMClient is wired in place of a real provider client,
// which spec §1 places out of the core's scope. Every call fails
// immediately so C6 always degrades to lower-tier results and records
// tier3_unavailable, exactly as it would on a real provider timeout.
type unconfiguredLLMClient struct{}

func (unconfiguredLLMClient) Extract(ctx context.Context, text string, schema map[string]any) (map[string][]string, error) {
	return nil, context.DeadlineExceeded
}

func (unconfiguredLLMClient) Summarize(ctx context.Context, bundle *domain.Bundle, role string) (string, error) {
	return "", context.DeadlineExceeded
}

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	cat := catalog.New()
	dosingParser := dosing.NewParser()

	p := pipeline.New(
		validator.New(cat, logger),
		nlp.New(cat, logger),
		consolidation.New(cat, dosingParser, logger),
		escalation.New(cat, logger, cfg.Pipeline.ComplexityEscalationThreshold),
		llmextract.New(unconfiguredLLMClient{}, cfg.Pipeline.LLMTimeout, logger),
		fhirfactory.New(cat, dosingParser, logger),
		bundleassembler.New(logger),
		metrics.New(cfg.Cache, logger),
		logger,
	)

	server := api.NewServer(configManager, p, logger)

	logger.WithFields(logrus.Fields{"host": cfg.Server.Host, "port": cfg.Server.Port}).Info("starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
	logger.Info("server stopped")
}

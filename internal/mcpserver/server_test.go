package mcpserver

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlfhir/orderpipeline/internal/bundleassembler"
	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/config"
	"github.com/nlfhir/orderpipeline/internal/consolidation"
	"github.com/nlfhir/orderpipeline/internal/escalation"
	"github.com/nlfhir/orderpipeline/internal/fhirfactory"
	"github.com/nlfhir/orderpipeline/internal/llmextract"
	"github.com/nlfhir/orderpipeline/internal/metrics"
	"github.com/nlfhir/orderpipeline/internal/nlp"
	"github.com/nlfhir/orderpipeline/internal/pipeline"
	"github.com/nlfhir/orderpipeline/internal/validator"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	configManager, err := config.NewManager()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cat := catalog.New()
	dosingParser := dosing.NewParser()

	p := pipeline.New(
		validator.New(cat, logger),
		nlp.New(cat, logger),
		consolidation.New(cat, dosingParser, logger),
		escalation.New(cat, logger, 0),
		llmextract.New(nil, 0, logger),
		fhirfactory.New(cat, dosingParser, logger),
		bundleassembler.New(logger),
		metrics.NewMemoryRecorder(),
		logger,
	)

	return NewServer(configManager, p, logger)
}

func TestHandleConvert_RejectsEmptyText(t *testing.T) {
	s := newTestMCPServer(t)

	result, payload, err := s.handleConvert(context.Background(), nil, ConvertParams{})
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.True(t, result.IsError)
}

func TestHandleConvert_ValidOrder(t *testing.T) {
	s := newTestMCPServer(t)

	result, payload, err := s.handleConvert(context.Background(), nil, ConvertParams{
		Text:           "Start lisinopril 10mg once daily for hypertension",
		ValidationMode: "strict",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out, ok := payload.(ConvertResultPayload)
	require.True(t, ok)
	assert.Equal(t, "completed", out.Status)
	assert.NotNil(t, out.Bundle)
}

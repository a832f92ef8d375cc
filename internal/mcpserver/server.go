// Package mcpserver exposes the clinical-order-to-FHIR pipeline as a
// single MCP stdio tool, convert_clinical_order. Like internal/api,
// this is a thin host adapter outside the core's scope (spec §1).
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/config"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/internal/pipeline"
)

// ConvertParams defines the parameters for the convert_clinical_order
// tool, per spec §6's Convert contract.
type ConvertParams struct {
	Text           string `json:"text"`
	RequestID      string `json:"request_id,omitempty"`
	ValidationMode string `json:"validation_mode,omitempty"`
}

// ConvertResultPayload mirrors pipeline.ConvertResult in a JSON-friendly
// shape for the tool's structured output.
type ConvertResultPayload struct {
	Status           string          `json:"status"`
	Bundle           *domain.Bundle  `json:"bundle,omitempty"`
	OverallConfidence float64        `json:"overall_confidence"`
	FHIRCompliance   bool            `json:"fhir_compliance"`
	TierUsed         domain.SourceTier `json:"tier_used"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	FailureField     string          `json:"failure_field,omitempty"`
}

// Server wraps the pipeline behind an MCP tool registry.
type Server struct {
	config    *config.Manager
	pipeline  *pipeline.Pipeline
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer constructs the MCP host around an already-wired Pipeline.
func NewServer(configManager *config.Manager, p *pipeline.Pipeline, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	info := &mcp.Implementation{
		Name:    "nlfhir-orderpipeline",
		Version: cfg.MCP.ProtocolVersion,
	}
	mcpServer := mcp.NewServer(info, nil)

	s := &Server{config: configManager, pipeline: p, mcpServer: mcpServer, logger: logger}

	mcpServer.AddTool(&mcp.Tool{
		Name:        cfg.MCP.ToolName,
		Description: "Converts free-text clinical orders into validated FHIR R4 transaction bundles.",
	}, s.handleConvert)

	return s
}

// Run blocks serving the tool over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleConvert(ctx context.Context, req *mcp.CallToolRequest, params ConvertParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", s.config.GetConfig().MCP.ToolName).Info("tool invoked")

	if params.Text == "" {
		return s.errorResult("missing required parameter", fmt.Errorf("text is required")), nil, nil
	}

	mode := domain.ValidationMode(params.ValidationMode)
	if mode == "" {
		mode = domain.ValidationMode(s.config.GetConfig().Pipeline.DefaultValidationMode)
	}

	result, err := s.pipeline.Convert(ctx, params.Text, params.RequestID, mode)
	if err != nil {
		return s.errorResult("conversion failed", err), nil, nil
	}

	payload := ConvertResultPayload{
		Status:            string(result.Status),
		Bundle:            result.Bundle,
		OverallConfidence: result.Quality.OverallConfidence,
		FHIRCompliance:    result.Quality.FHIRCompliance,
		TierUsed:          result.Quality.TierUsed,
		ProcessingTimeMS:  result.ProcessingTimeMS,
		FailureField:      result.FailureField,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("conversion %s (tier_used=%s, confidence=%.2f)", payload.Status, payload.TierUsed, payload.OverallConfidence)},
		},
	}, payload, nil
}

func (s *Server) errorResult(message string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)},
		},
	}
}

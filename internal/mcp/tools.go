package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/internal/service"
	"github.com/medcase-generator/pkg/lrmatrix"
)

// ListCasesParams defines parameters for the list_cases tool
type ListCasesParams struct{}

// CaseParams identifies a stored case
type CaseParams struct {
	CaseID int64 `json:"case_id" jsonschema:"id of the stored case"`
}

// MatrixParams defines parameters for the matrix tools
type MatrixParams struct {
	CaseID    int64 `json:"case_id" jsonschema:"id of the stored case"`
	TierLevel *int  `json:"tier_level,omitempty" jsonschema:"tier whose buckets become columns; omit to use every tier"`
	Strict    *bool `json:"strict,omitempty" jsonschema:"exact bucket matching only; omit for the server default"`
	Save      bool  `json:"save,omitempty" jsonschema:"also write the CSV and XLSX files to the export directory"`
}

// PriorsParams defines parameters for the export_prior_probabilities tool
type PriorsParams struct {
	CaseID    int64 `json:"case_id" jsonschema:"id of the stored case"`
	TierLevel *int  `json:"tier_level,omitempty" jsonschema:"tier to export (default 1)"`
	Save      bool  `json:"save,omitempty" jsonschema:"also write the JSON file to the export directory"`
}

// MatrixResult is the result of the build_lr_matrix tool
type MatrixResult struct {
	CaseID       int64                     `json:"case_id"`
	TierLevel    int                       `json:"tier_level"`
	TierFallback bool                      `json:"tier_fallback"`
	Columns      []string                  `json:"columns"`
	Rows         int                       `json:"rows"`
	Matched      int                       `json:"matched"`
	Unmatched    int                       `json:"unmatched"`
	CSV          string                    `json:"csv"`
	Validation   lrmatrix.ValidationResult `json:"validation"`
	Files        []string                  `json:"files,omitempty"`
}

// PriorsResult is the result of the export_prior_probabilities tool
type PriorsResult struct {
	CaseID        int64              `json:"case_id"`
	TierLevel     int                `json:"tier_level"`
	Probabilities map[string]float64 `json:"probabilities"`
	File          string             `json:"file,omitempty"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_cases",
		Description: "List the stored cases with their ids, titles and primary diagnoses.",
	}, s.handleListCases)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "build_lr_matrix",
		Description: "Build the feature by diagnostic-bucket likelihood ratio matrix of a case as simulator CSV.",
	}, s.handleBuildMatrix)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_lr_matrix",
		Description: "Check whether a case's LR matrix meets the simulator's input requirements.",
	}, s.handleValidateMatrix)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_prior_probabilities",
		Description: "Export the a priori probabilities of one diagnostic tier. Fails when they do not sum to 1.0.",
	}, s.handleExportPriors)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "render_case_summary",
		Description: "Render the plain-text case summary the simulator loads.",
	}, s.handleRenderSummary)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "debug_bucket_matching",
		Description: "Show how each LR record's bucket label was matched to a matrix column.",
	}, s.handleDebugMatching)

	s.logger.WithField("tool_count", 6).Debug("Registered MCP tools")
}

func (s *LiteServer) handleListCases(ctx context.Context, _ *mcp.CallToolRequest, _ ListCasesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_cases").Info("Tool invoked")

	cases, err := s.repo.List(ctx)
	if err != nil {
		return s.createErrorResult("Failed to list cases", err), nil, nil
	}
	return s.jsonResult(map[string]interface{}{"count": len(cases), "cases": cases})
}

func (s *LiteServer) handleBuildMatrix(ctx context.Context, _ *mcp.CallToolRequest, params MatrixParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "build_lr_matrix", "case_id": params.CaseID}).Info("Tool invoked")

	c, err := s.loadCase(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Failed to load case", err), nil, nil
	}

	opts := service.MatrixOptions{TierLevel: params.TierLevel, Strict: params.Strict}
	result, err := s.exports.BuildMatrix(c, opts)
	if err != nil {
		return s.createErrorResult("Failed to build LR matrix", err), nil, nil
	}
	csv, err := export.RenderCSV(result.Table)
	if err != nil {
		return s.createErrorResult("Failed to render LR matrix", err), nil, nil
	}

	out := MatrixResult{
		CaseID:       c.ID,
		TierLevel:    result.Report.TierLevel,
		TierFallback: result.Report.TierFallback,
		Columns:      result.Report.Columns,
		Rows:         result.Table.Len(),
		Matched:      result.Report.Matched,
		Unmatched:    result.Report.Unmatched,
		CSV:          string(csv),
		Validation:   lrmatrix.Validate(result.Table),
	}

	if params.Save {
		for _, render := range []func(*domain.Case, service.MatrixOptions) (*export.Artifact, error){
			s.exports.ExportCSV,
			s.exports.ExportSpreadsheet,
		} {
			artifact, err := render(c, opts)
			if err != nil {
				return s.createErrorResult("Failed to export LR matrix", err), nil, nil
			}
			path, err := s.save(artifact)
			if err != nil {
				return s.createErrorResult("Failed to write export", err), nil, nil
			}
			out.Files = append(out.Files, path)
		}
	}

	return s.jsonResult(out)
}

func (s *LiteServer) handleValidateMatrix(ctx context.Context, _ *mcp.CallToolRequest, params MatrixParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "validate_lr_matrix", "case_id": params.CaseID}).Info("Tool invoked")

	c, err := s.loadCase(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Failed to load case", err), nil, nil
	}
	validation, err := s.exports.ValidateMatrix(c, service.MatrixOptions{TierLevel: params.TierLevel, Strict: params.Strict})
	if err != nil {
		return s.createErrorResult("Failed to build LR matrix", err), nil, nil
	}
	return s.jsonResult(validation)
}

func (s *LiteServer) handleExportPriors(ctx context.Context, _ *mcp.CallToolRequest, params PriorsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "export_prior_probabilities", "case_id": params.CaseID}).Info("Tool invoked")

	tier := service.DefaultExportTier
	if params.TierLevel != nil {
		tier = *params.TierLevel
	}

	c, err := s.loadCase(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Failed to load case", err), nil, nil
	}
	priors, err := s.exports.Priors(c, tier)
	if err != nil {
		return s.createErrorResult("Prior probabilities cannot be exported", err), nil, nil
	}

	out := PriorsResult{CaseID: c.ID, TierLevel: tier, Probabilities: priors}
	if params.Save {
		artifact, err := s.exports.ExportPriors(c, tier)
		if err != nil {
			return s.createErrorResult("Prior probabilities cannot be exported", err), nil, nil
		}
		if out.File, err = s.save(artifact); err != nil {
			return s.createErrorResult("Failed to write export", err), nil, nil
		}
	}
	return s.jsonResult(out)
}

func (s *LiteServer) handleRenderSummary(ctx context.Context, _ *mcp.CallToolRequest, params CaseParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "render_case_summary", "case_id": params.CaseID}).Info("Tool invoked")

	c, err := s.loadCase(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Failed to load case", err), nil, nil
	}
	artifact := s.exports.ExportSummary(c)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(artifact.Data)}},
	}, nil, nil
}

func (s *LiteServer) handleDebugMatching(ctx context.Context, _ *mcp.CallToolRequest, params MatrixParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "debug_bucket_matching", "case_id": params.CaseID}).Info("Tool invoked")

	c, err := s.loadCase(ctx, params.CaseID)
	if err != nil {
		return s.createErrorResult("Failed to load case", err), nil, nil
	}
	report, err := s.exports.DebugMatching(c, service.MatrixOptions{TierLevel: params.TierLevel, Strict: params.Strict})
	if err != nil {
		return s.createErrorResult("Failed to build LR matrix", err), nil, nil
	}
	return s.jsonResult(report)
}

func (s *LiteServer) loadCase(ctx context.Context, id int64) (*domain.Case, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("case_id", "must be a positive integer", id)
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("case %d: %w", id, err)
	}
	return c, nil
}

// save writes an artifact into the export directory and returns its path.
func (s *LiteServer) save(a *export.Artifact) (string, error) {
	path := filepath.Join(s.config.ExportDir(), a.Name)
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", err
	}
	s.logger.WithField("path", path).Info("Wrote export file")
	return path, nil
}

func (s *LiteServer) jsonResult(v interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// createErrorResult creates an error result for MCP tools
func (s *LiteServer) createErrorResult(message string, err error) *mcp.CallToolResult {
	s.logger.WithError(err).Warn(message)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)},
		},
		IsError: true,
	}
}

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/export"
	"github.com/medcase-generator/internal/service"
)

// handleRoot describes the service
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "medcase-generator",
		"version": Version,
		"endpoints": []string{
			"POST /preview-case",
			"PUT /edit-case",
			"GET /session/:session_id",
			"POST /finalize-case",
			"POST /generate-case",
			"GET /cases",
			"GET /case/:case_id/output-files",
			"GET /case/:case_id/simulator-exports",
			"GET /case/:case_id/debug-lr-data",
			"GET /case/:case_id/simulator-export/lr-matrix-csv",
			"GET /case/:case_id/simulator-export/lr-matrix-excel",
			"GET /case/:case_id/simulator-export/prior-probabilities",
			"GET /case/:case_id/simulator-export/case-summary",
			"GET /case/:case_id/simulator-export/bundle",
		},
	})
}

// handleHealth reports the status of the case store and session backend
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	checks := gin.H{}

	if err := s.deps.Repo.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["storage"] = err.Error()
	} else {
		checks["storage"] = "ok"
	}
	if err := s.deps.Sessions.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["sessions"] = err.Error()
	} else {
		checks["sessions"] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

func (s *Server) handlePreviewCase(c *gin.Context) {
	var input domain.CaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.badRequest(c, "Invalid case input", err.Error())
		return
	}

	preview, err := s.deps.Cases.PreviewCase(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) handleEditCase(c *gin.Context) {
	var req service.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid edit request", err.Error())
		return
	}

	draft, err := s.deps.Cases.EditCase(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Case updated",
		"session_id": req.SessionID,
		"draft":      draft,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	draft, err := s.deps.Cases.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) handleFinalizeCase(c *gin.Context) {
	var req service.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid finalize request", err.Error())
		return
	}

	saved, err := s.deps.Cases.FinalizeCase(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Case saved",
		"case_id": saved.ID,
		"title":   saved.Title,
	})
}

func (s *Server) handleGenerateCase(c *gin.Context) {
	var input domain.CaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.badRequest(c, "Invalid case input", err.Error())
		return
	}

	saved, err := s.deps.Cases.GenerateCase(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleListCases(c *gin.Context) {
	cases, err := s.deps.Cases.ListCases(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (s *Server) handleOutputFiles(c *gin.Context) {
	id, ok := s.caseID(c)
	if !ok {
		return
	}
	files, err := s.deps.Cases.OutputFiles(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleExportInfo(c *gin.Context) {
	id, ok := s.caseID(c)
	if !ok {
		return
	}
	info, err := s.deps.Cases.ExportInfo(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDebugLRData(c *gin.Context) {
	id, ok := s.caseID(c)
	if !ok {
		return
	}
	opts, ok := s.matrixOptions(c, nil)
	if !ok {
		return
	}
	data, err := s.deps.Cases.DebugLRData(c.Request.Context(), id, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handleMatrixCSV(c *gin.Context) {
	s.serveMatrix(c, s.deps.Exports.ExportCSV)
}

func (s *Server) handleMatrixSpreadsheet(c *gin.Context) {
	s.serveMatrix(c, s.deps.Exports.ExportSpreadsheet)
}

func (s *Server) serveMatrix(c *gin.Context, render func(*domain.Case, service.MatrixOptions) (*export.Artifact, error)) {
	defaultTier := service.DefaultExportTier
	opts, ok := s.matrixOptions(c, &defaultTier)
	if !ok {
		return
	}
	stored, ok := s.loadCase(c)
	if !ok {
		return
	}
	artifact, err := render(stored, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	attachment(c, artifact)
}

func (s *Server) handlePriors(c *gin.Context) {
	tier, ok := s.tierLevel(c, service.DefaultExportTier)
	if !ok {
		return
	}
	stored, ok := s.loadCase(c)
	if !ok {
		return
	}
	artifact, err := s.deps.Exports.ExportPriors(stored, tier)
	if err != nil {
		s.respondError(c, err)
		return
	}
	attachment(c, artifact)
}

func (s *Server) handleCaseSummary(c *gin.Context) {
	stored, ok := s.loadCase(c)
	if !ok {
		return
	}
	attachment(c, s.deps.Exports.ExportSummary(stored))
}

func (s *Server) handleBundle(c *gin.Context) {
	tier, ok := s.tierLevel(c, service.DefaultExportTier)
	if !ok {
		return
	}
	strict, ok := s.strictParam(c)
	if !ok {
		return
	}
	stored, ok := s.loadCase(c)
	if !ok {
		return
	}
	artifact, err := s.deps.Exports.ExportBundle(c.Request.Context(), stored, tier, strict)
	if err != nil {
		s.respondError(c, err)
		return
	}
	attachment(c, artifact)
}

func attachment(c *gin.Context, a *export.Artifact) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.Name))
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

func (s *Server) caseID(c *gin.Context) (int64, bool) {
	raw := c.Param("case_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(c, "case_id must be a positive integer", raw)
		return 0, false
	}
	return id, true
}

func (s *Server) loadCase(c *gin.Context) (*domain.Case, bool) {
	id, ok := s.caseID(c)
	if !ok {
		return nil, false
	}
	stored, err := s.deps.Cases.GetCase(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return stored, true
}

// tierLevel reads the tier_level query parameter, falling back to def when absent.
func (s *Server) tierLevel(c *gin.Context, def int) (int, bool) {
	raw, present := c.GetQuery("tier_level")
	if !present || raw == "" {
		return def, true
	}
	tier, err := strconv.Atoi(raw)
	if err != nil || tier <= 0 {
		s.badRequest(c, "tier_level must be a positive integer", raw)
		return 0, false
	}
	return tier, true
}

// strictParam reads the optional strict query parameter. Absent means the configured default.
func (s *Server) strictParam(c *gin.Context) (*bool, bool) {
	raw, present := c.GetQuery("strict")
	if !present || raw == "" {
		return nil, true
	}
	strict, err := strconv.ParseBool(raw)
	if err != nil {
		s.badRequest(c, "strict must be a boolean", raw)
		return nil, false
	}
	return &strict, true
}

// matrixOptions reads tier_level and strict. A nil def leaves the tier unset so every tier's
// buckets are considered.
func (s *Server) matrixOptions(c *gin.Context, def *int) (service.MatrixOptions, bool) {
	var opts service.MatrixOptions
	if raw := c.Query("tier_level"); raw != "" || def != nil {
		fallback := 0
		if def != nil {
			fallback = *def
		}
		tier, ok := s.tierLevel(c, fallback)
		if !ok {
			return opts, false
		}
		opts.TierLevel = &tier
	}
	strict, ok := s.strictParam(c)
	if !ok {
		return opts, false
	}
	opts.Strict = strict
	return opts, true
}

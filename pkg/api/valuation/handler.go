// Package valuation serves valuation worksheets over HTTP. Each worksheet
// lives in memory for the lifetime of the process.
package valuation

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"

	"property_appraisal/pkg/core/config"
	"property_appraisal/pkg/core/derived"
	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/report"
	"property_appraisal/pkg/core/survey"
	"property_appraisal/pkg/core/worksheet"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type CreateRequest struct {
	Method string `json:"method" binding:"required"`
	// Dataset is a survey dataset document; hand-edited JSON is accepted.
	Dataset json.RawMessage `json:"dataset" binding:"required"`
}

type CellRequest struct {
	Path  string `json:"path" binding:"required"`
	Value any    `json:"value"`
}

type SurveysRequest struct {
	Surveys []survey.Survey `json:"surveys"`
}

type RowsRequest struct {
	Rows []method.QualitativeRow `json:"rows"`
}

// PassSummary is the JSON view of a derived.PassReport.
type PassSummary struct {
	Evaluated int      `json:"evaluated"`
	Written   int      `json:"written"`
	Guarded   int      `json:"guarded"`
	Failures  []string `json:"failures,omitempty"`
}

type WorksheetResponse struct {
	ID      string                 `json:"id"`
	Method  method.Kind            `json:"method"`
	Result  worksheet.Result       `json:"result"`
	Checks  *worksheet.CheckReport `json:"checks"`
	Pass    *PassSummary           `json:"pass,omitempty"`
	Cells   map[string]any         `json:"cells,omitempty"`
	Dirty   []string               `json:"dirty,omitempty"`
	Surveys []string               `json:"surveys"`
}

type session struct {
	mu sync.Mutex
	ws *worksheet.Worksheet
}

// Handler owns the open worksheets.
type Handler struct {
	cfg    config.Config
	logger *log.Logger

	mu     sync.Mutex
	sheets map[uuid.UUID]*session
}

// NewHandler creates a handler that builds worksheets with cfg.
func NewHandler(cfg config.Config) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: log.New(os.Stderr, "", log.LstdFlags),
		sheets: make(map[uuid.UUID]*session),
	}
}

// SetLogger replaces the handler and worksheet logger.
func (h *Handler) SetLogger(l *log.Logger) { h.logger = l }

func (h *Handler) lookup(c *gin.Context) (*session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid worksheet id", Code: "INVALID_ID"})
		return nil, false
	}
	h.mu.Lock()
	s, ok := h.sheets[id]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("worksheet %s not found", id), Code: "NOT_FOUND"})
		return nil, false
	}
	return s, true
}

// HandleCreate builds a worksheet from a dataset.
func (h *Handler) HandleCreate(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	kind, err := method.ParseKind(req.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_METHOD"})
		return
	}
	dataset, err := survey.Decode(req.Dataset)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "INVALID_DATASET"})
		return
	}

	opts := []worksheet.Option{worksheet.WithLogger(h.logger)}
	if h.cfg.StrictReads {
		opts = append(opts, worksheet.WithStrictReads())
	}
	ws, err := worksheet.New(kind, nil, h.cfg.Settings(kind), opts...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "BUILD_FAILED"})
		return
	}
	rows := h.cfg.Rows()
	if len(dataset.QualitativeFactors) > 0 {
		rows = method.RowsFromCodes(dataset.QualitativeFactors)
	}
	pass, err := ws.Load(dataset.Property, dataset.Surveys, rows)
	if err != nil {
		ws.Close()
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "LOAD_FAILED"})
		return
	}

	h.mu.Lock()
	h.sheets[ws.ID] = &session{ws: ws}
	h.mu.Unlock()
	h.logger.Printf("[VALUATION] created %s worksheet %s with %d surveys", kind, ws.ID, len(dataset.Surveys))

	c.JSON(http.StatusCreated, view(ws, &pass, false))
}

// HandleGet returns the worksheet with every cell.
func (h *Handler) HandleGet(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, view(s.ws, nil, true))
}

// HandleSetCell applies one user edit inside the worksheet's section.
func (h *Handler) HandleSetCell(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := fieldpath.Path(strings.TrimSpace(req.Path))
	if !fieldpath.HasPrefix(p, fieldpath.Section(s.ws.Sheet().Section)) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("path %q is outside section %s", p, s.ws.Sheet().Section),
			Code:  "INVALID_PATH",
		})
		return
	}
	s.ws.Set(p, req.Value)
	pass := s.ws.LastPass()
	if !slices.Contains(pass.Trigger, p) {
		// no rule reads p, so no pass ran for this edit
		c.JSON(http.StatusOK, view(s.ws, nil, false))
		return
	}
	c.JSON(http.StatusOK, view(s.ws, &pass, false))
}

// HandleSetSurveys replaces the comparison columns.
func (h *Handler) HandleSetSurveys(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req SurveysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range req.Surveys {
		if req.Surveys[i].CollateralType == "" {
			req.Surveys[i].CollateralType = s.ws.Property().CollateralType
		}
		if err := req.Surveys[i].Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "INVALID_SURVEY"})
			return
		}
	}
	pass, err := s.ws.SetSurveys(req.Surveys)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "REINDEX_FAILED"})
		return
	}
	c.JSON(http.StatusOK, view(s.ws, &pass, false))
}

// HandleSetRows replaces the qualitative factor rows.
func (h *Handler) HandleSetRows(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req RowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pass, err := s.ws.SetQualitativeRows(req.Rows)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "REINDEX_FAILED"})
		return
	}
	c.JSON(http.StatusOK, view(s.ws, &pass, false))
}

// HandleReport renders the worksheet as Markdown, or HTML with ?format=html.
func (h *Handler) HandleReport(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	md := report.Markdown(s.ws)
	s.mu.Unlock()

	if c.Query("format") != "html" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
		return
	}
	html, err := report.RenderHTML(md)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RENDER_FAILED"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// HandleDelete closes a worksheet.
func (h *Handler) HandleDelete(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h.mu.Lock()
	delete(h.sheets, s.ws.ID)
	h.mu.Unlock()
	s.ws.Close()
	c.Status(http.StatusNoContent)
}

// Close closes every open worksheet.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sheets {
		s.ws.Close()
		delete(h.sheets, id)
	}
}

func view(ws *worksheet.Worksheet, pass *derived.PassReport, withCells bool) WorksheetResponse {
	resp := WorksheetResponse{
		ID:      ws.ID.String(),
		Method:  ws.Kind,
		Result:  ws.Result(),
		Checks:  ws.Check(0),
		Surveys: survey.IDs(ws.Surveys()),
	}
	if pass != nil {
		sum := &PassSummary{Evaluated: pass.Evaluated, Written: pass.Written, Guarded: pass.Guarded}
		for _, f := range pass.Failures {
			sum.Failures = append(sum.Failures, fmt.Sprintf("%s: %v", f.Target, f.Err))
		}
		resp.Pass = sum
	}
	if withCells {
		root := fieldpath.Section(ws.Sheet().Section)
		resp.Cells = make(map[string]any)
		for _, p := range ws.Form().Paths(root) {
			resp.Cells[string(p)] = ws.Value(p)
			if ws.Dirty(p) {
				resp.Dirty = append(resp.Dirty, string(p))
			}
		}
	}
	return resp
}

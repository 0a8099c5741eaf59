// Package config serves the effective appraisal settings.
package config

import (
	"net/http"
	"sort"

	coreconfig "property_appraisal/pkg/core/config"
	"property_appraisal/pkg/core/method"

	"github.com/gin-gonic/gin"
)

type Level struct {
	Code    string  `json:"code"`
	Percent float64 `json:"percent"`
}

type Response struct {
	Methods           []method.Kind           `json:"methods"`
	OfferingAdjustPct float64                 `json:"offering_adjust_pct"`
	DefaultLevel      string                  `json:"default_level"`
	Levels            []Level                 `json:"levels"`
	Granularity       map[string]float64      `json:"granularity"`
	QualitativeRows   []method.QualitativeRow `json:"qualitative_rows"`
	StrictReads       bool                    `json:"strict_reads"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Config coreconfig.Config
}

// NewHandler creates a new config handler
func NewHandler(cfg coreconfig.Config) *Handler {
	return &Handler{Config: cfg}
}

// HandleConfig returns the settings without the database URL.
func (h *Handler) HandleConfig(c *gin.Context) {
	levels := make([]Level, 0, len(h.Config.Levels))
	for code, pct := range h.Config.Levels {
		levels = append(levels, Level{Code: code, Percent: pct})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Percent != levels[j].Percent {
			return levels[i].Percent < levels[j].Percent
		}
		return levels[i].Code < levels[j].Code
	})

	c.JSON(http.StatusOK, Response{
		Methods:           method.Kinds,
		OfferingAdjustPct: h.Config.Defaults.OfferingAdjustPct,
		DefaultLevel:      h.Config.Defaults.Level,
		Levels:            levels,
		Granularity:       h.Config.Granularity,
		QualitativeRows:   h.Config.Rows(),
		StrictReads:       h.Config.StrictReads,
	})
}

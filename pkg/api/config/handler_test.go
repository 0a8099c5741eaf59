package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	coreconfig "property_appraisal/pkg/core/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := coreconfig.Default()
	cfg.Database.URL = "postgres://secret@db/appraisal"
	cfg.QualitativeRows = []coreconfig.Row{{Code: "ACCESS"}}

	router := gin.New()
	router.GET("/api/config", NewHandler(cfg).HandleConfig)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp.OfferingAdjustPct)
	assert.Equal(t, "E", resp.DefaultLevel)
	require.Len(t, resp.Levels, 5)
	assert.Equal(t, Level{Code: "MB", Percent: -10}, resp.Levels[0])
	assert.Equal(t, Level{Code: "MW", Percent: 10}, resp.Levels[4])
	assert.Equal(t, "ACCESS", resp.QualitativeRows[0].Label)
	assert.Len(t, resp.Methods, 3)
}

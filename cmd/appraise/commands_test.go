package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"property_appraisal/pkg/core/config"
	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.Load("../../config/appraisal.yaml")
	require.NoError(t, err)
	return c
}

func TestRunAppraisal_Markdown(t *testing.T) {
	var out bytes.Buffer
	err := runAppraisal(context.Background(), repoConfig(t), runOptions{
		Method:  "grid",
		Surveys: "testdata/surveys.json",
	}, &out)
	require.NoError(t, err)

	md := out.String()
	assert.Contains(t, md, "| Line | Kenanga 8 | Melati 3 | Mawar 21 |")
	assert.Contains(t, md, "| Adjusted value | 21,612.50 | 28,500.00 | 26,500.00 |")
	assert.Contains(t, md, "| Location level | E | E | E |")
	assert.Contains(t, md, "| Road access % | 0.00 | 0.00 | 0.00 |")
	assert.Contains(t, md, "| Final value | 25,537.50 |")
	assert.Contains(t, md, "| Appraisal price | 3,000,000.00 |")
}

func TestRunAppraisal_JSONAndHTML(t *testing.T) {
	htmlPath := filepath.Join(t.TempDir(), "report.html")
	var out bytes.Buffer
	err := runAppraisal(context.Background(), repoConfig(t), runOptions{
		Method:   "direct-comparison",
		Surveys:  "testdata/surveys.json",
		HTMLPath: htmlPath,
		JSON:     true,
	}, &out)
	require.NoError(t, err)

	var got struct {
		ID     string `json:"id"`
		Result struct {
			Method            method.Kind `json:"method"`
			FinalValue        float64     `json:"final_value"`
			RoundedFinalValue float64     `json:"rounded_final_value"`
		} `json:"result"`
		Checks struct {
			AllPassed bool `json:"all_passed"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, method.KindDirect, got.Result.Method)
	assert.Equal(t, 76612.5, got.Result.FinalValue)
	assert.Equal(t, 76000.0, got.Result.RoundedFinalValue)
	assert.True(t, got.Checks.AllPassed)

	var inspected bytes.Buffer
	require.NoError(t, inspectReport(htmlPath, &inspected))
	assert.Contains(t, inspected.String(), "Rounded final value:       76,000.00")
}

func TestRunAppraisal_PropertyOverride(t *testing.T) {
	var out bytes.Buffer
	err := runAppraisal(context.Background(), repoConfig(t), runOptions{
		Method:   "grid",
		Surveys:  "testdata/surveys.json",
		Property: "testdata/property.hjson",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "| Appraisal price | 1,250,000.00 |")
}

func TestRunAppraisal_Errors(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		name string
		opts runOptions
	}{
		{"unknown method", runOptions{Method: "cost", Surveys: "testdata/surveys.json"}},
		{"no source", runOptions{Method: "grid"}},
		{"db without appraisal id", runOptions{Method: "grid", UseDB: true}},
		{"missing file", runOptions{Method: "grid", Surveys: "testdata/nope.json"}},
		{"bad property", runOptions{Method: "grid", Surveys: "testdata/surveys.json", Property: "testdata/surveys.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, runAppraisal(context.Background(), cfg, tt.opts, &bytes.Buffer{}))
		})
	}
}

func TestQualitativeRows(t *testing.T) {
	cfg := repoConfig(t)

	fromConfig := qualitativeRows(cfg, &survey.Dataset{})
	require.Len(t, fromConfig, 3)
	assert.Equal(t, "Plot shape", fromConfig[2].Label)

	fromDataset := qualitativeRows(cfg, &survey.Dataset{QualitativeFactors: []survey.Code{"ACCESS", "VIEW"}})
	assert.Equal(t, []method.QualitativeRow{
		{Code: "ACCESS", Label: "Road access"},
		{Code: "VIEW", Label: "VIEW"},
	}, fromDataset)
}

func TestInspectReport_MissingFile(t *testing.T) {
	assert.Error(t, inspectReport(filepath.Join(t.TempDir(), "none.html"), &bytes.Buffer{}))

	path := filepath.Join(t.TempDir(), "plain.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>no tables</p>"), 0o644))
	assert.Error(t, inspectReport(path, &bytes.Buffer{}))
}

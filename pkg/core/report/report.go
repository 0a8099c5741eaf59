// Package report renders a worksheet as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"property_appraisal/pkg/core/fieldpath"
	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/utils"
	"property_appraisal/pkg/core/worksheet"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// line is one labelled row of the grid table.
type line struct {
	label string
	cell  func(col int) fieldpath.Path
}

var titles = map[method.Kind]string{
	method.KindSaleGrid: "Sale Adjustment Grid",
	method.KindDirect:   "Direct Comparison",
	method.KindWQS:      "Weighted Quality Score",
}

// Title returns the display name of a method.
func Title(k method.Kind) string {
	if t, ok := titles[k]; ok {
		return t
	}
	return string(k)
}

// Markdown renders the comparison grid (one column per survey), the final
// lines and any failed consistency check.
func Markdown(ws *worksheet.Worksheet) string {
	var b strings.Builder
	kind := ws.Kind
	surveys := ws.Surveys()

	fmt.Fprintf(&b, "# %s\n\n", Title(kind))

	headers := []string{"Line"}
	for _, s := range surveys {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		headers = append(headers, name)
	}

	var rows [][]string
	for _, l := range gridLines(ws) {
		row := []string{l.label}
		for c := range surveys {
			row = append(row, FormatValue(ws.Value(l.cell(c))))
		}
		rows = append(rows, row)
	}
	b.WriteString("## Comparables\n\n")
	b.WriteString(utils.MarkdownTable(headers, rows))

	if kind == method.KindWQS && len(ws.Rows()) > 0 {
		b.WriteString("\n## Factor weights\n\n")
		b.WriteString(utils.MarkdownTable([]string{"Factor", "Weight", "Subject score"}, wqsRows(ws)))
	}

	b.WriteString("\n## Result\n\n")
	b.WriteString(utils.MarkdownTable([]string{"Line", "Value"}, resultRows(ws)))

	if check := ws.Check(0); !check.AllPassed {
		b.WriteString("\n## Checks\n\n")
		for _, f := range check.FailedChecks {
			fmt.Fprintf(&b, "- %s\n", utils.EscapeCell(f))
		}
	}
	return b.String()
}

func gridLines(ws *worksheet.Worksheet) []line {
	sh := ws.Sheet()
	col := func(field string) func(int) fieldpath.Path {
		return func(c int) fieldpath.Path { return sh.Col(c, field) }
	}
	cell := func(r int, field string) func(int) fieldpath.Path {
		return func(c int) fieldpath.Path { return sh.Cell(r, c, field) }
	}

	lines := []line{
		{"Offering price", col(method.FieldOfferingPrice)},
		{"Offering adjustment %", col(method.FieldOfferingAdjustPct)},
		{"Offering adjustment", col(method.FieldOfferingAdjustAmt)},
		{"Selling price", col(method.FieldSellingPrice)},
		{"Adjusted value", col(method.FieldAdjustedValue)},
	}

	if ws.Property().CollateralType.HasSecondRevision() {
		lines = append(lines,
			line{"Land area difference", col(method.FieldLandAreaDiff)},
			line{"Land increase/decrease", col(method.FieldLandIncreaseDecrease)},
			line{"Usable area difference", col(method.FieldUsableAreaDiff)},
			line{"Building increase/decrease", col(method.FieldBuildingIncreaseDecrease)},
		)
	}
	lines = append(lines, line{"Total second revision", col(method.FieldTotalSecondRevision)})

	if ws.Kind == method.KindWQS {
		lines = append(lines, line{"Total adjusted value", col(method.FieldTotalAdjustValue)})
		for r, row := range ws.Rows() {
			lines = append(lines, line{row.Label + " score", cell(r, method.FieldScore)})
		}
		return append(lines, line{"Weighted score", col(method.FieldWeightedScore)})
	}

	for r, row := range ws.Rows() {
		lines = append(lines,
			line{row.Label + " level", cell(r, method.FieldLevel)},
			line{row.Label + " %", cell(r, method.FieldAdjustPct)},
			line{row.Label + " amount", cell(r, method.FieldAdjustAmt)},
		)
	}
	lines = append(lines,
		line{"Total adjustment %", col(method.FieldTotalAdjustPct)},
		line{"Total adjustment", col(method.FieldTotalAdjustAmt)},
		line{"Total adjusted value", col(method.FieldTotalAdjustValue)},
	)
	if ws.Kind == method.KindSaleGrid {
		lines = append(lines,
			line{"Weight", col(method.FieldWeight)},
			line{"Weighted value", col(method.FieldWeightedAdjustValue)},
		)
	}
	return lines
}

func wqsRows(ws *worksheet.Worksheet) [][]string {
	sh := ws.Sheet()
	var rows [][]string
	for r, row := range ws.Rows() {
		rows = append(rows, []string{
			row.Label,
			FormatValue(ws.Value(sh.Row(r, method.FieldRowWeight))),
			FormatValue(ws.Value(sh.Row(r, method.FieldPropertyScore))),
		})
	}
	return append(rows, []string{
		"Total",
		FormatValue(ws.Value(sh.Line(method.FieldTotalWeight))),
		FormatValue(ws.Value(sh.Line(method.FieldPropertyWeightedScore))),
	})
}

func resultRows(ws *worksheet.Worksheet) [][]string {
	r := ws.Result()
	return [][]string{
		{"Final value", FormatValue(r.FinalValue)},
		{"Rounded final value", FormatValue(r.RoundedFinalValue)},
		{"Appraisal price", FormatValue(r.AppraisalPrice)},
		{"Appraisal price (rounded)", FormatValue(r.AppraisalPriceRounded)},
	}
}

// FormatValue prints a cell: numbers with two decimals and thousands
// separators, text as is, empty cells as "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatNumber(x)
	case int:
		return formatNumber(float64(x))
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func formatNumber(x float64) string {
	if math.Abs(x) < 0.005 {
		x = 0
	}
	s := fmt.Sprintf("%.2f", x)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// RenderHTML converts Markdown (GFM tables enabled) to an HTML fragment.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := conv.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

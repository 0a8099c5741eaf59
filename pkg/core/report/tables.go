package report

import (
	"fmt"
	"io"
	"log"
	"strings"

	"property_appraisal/pkg/core/formula"
	"property_appraisal/pkg/core/worksheet"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// TABLE PARSER - Read rendered reports back
// =============================================================================

// Table is one HTML table of a rendered report.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    []TableRow `json:"rows"`
}

// TableRow is a labelled row; Cells excludes the label cell.
type TableRow struct {
	Label string   `json:"label"`
	Cells []string `json:"cells"`
}

// Cell returns the cell of the row labelled label in column col.
func (t Table) Cell(label string, col int) (string, bool) {
	for _, r := range t.Rows {
		if r.Label == label && col < len(r.Cells) {
			return r.Cells[col], true
		}
	}
	return "", false
}

// ParseHTMLTables extracts every table of an HTML report. A table's title is
// the text of the heading right before it.
func ParseHTMLTables(r io.Reader) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report html: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		t := Table{Title: findTableTitle(table)}

		table.Find("tr").Each(func(j int, row *goquery.Selection) {
			var cells []string
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if j == 0 {
				t.Headers = cells
				return
			}
			t.Rows = append(t.Rows, TableRow{Label: cells[0], Cells: cells[1:]})
		})

		if len(t.Headers) == 0 {
			log.Printf("[report] table #%d has no header row, skipped", i)
			return
		}
		tables = append(tables, t)
	})
	return tables, nil
}

func findTableTitle(table *goquery.Selection) string {
	prev := table.Prev()
	if prev.Length() > 0 && goquery.NodeName(prev) != "table" {
		return strings.TrimSpace(prev.Text())
	}
	return ""
}

// ReadResult recovers the final lines from a rendered report.
func ReadResult(r io.Reader) (worksheet.Result, error) {
	tables, err := ParseHTMLTables(r)
	if err != nil {
		return worksheet.Result{}, err
	}
	for _, t := range tables {
		if t.Title != "Result" {
			continue
		}
		num := func(label string) float64 {
			v, _ := t.Cell(label, 0)
			return formula.ToNumber(v)
		}
		return worksheet.Result{
			FinalValue:            num("Final value"),
			RoundedFinalValue:     num("Rounded final value"),
			AppraisalPrice:        num("Appraisal price"),
			AppraisalPriceRounded: num("Appraisal price (rounded)"),
		}, nil
	}
	return worksheet.Result{}, fmt.Errorf("report has no Result table")
}

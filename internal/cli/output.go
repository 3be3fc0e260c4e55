// Package cli provides output helpers for one-shot command runs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// AnalysisReport is the result of a one-shot analyze run.
type AnalysisReport struct {
	Ingredients    []string `json:"ingredients"`
	Verdict        string   `json:"verdict,omitempty"`
	Answer         string   `json:"answer"`
	ProcessingTime float64  `json:"processing_time"`
}

// WriteAnalysisReport writes an analysis report to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnalysisReport(w io.Writer, report *AnalysisReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		writeAnalysisReportText(w, report)
		return nil
	}
}

func writeAnalysisReportText(w io.Writer, report *AnalysisReport) {
	fmt.Fprintf(w, "성분 (%d개): %s\n", len(report.Ingredients), strings.Join(report.Ingredients, ", "))
	if report.Verdict != "" {
		fmt.Fprintf(w, "판정: %s\n", report.Verdict)
	}
	fmt.Fprintf(w, "\n%s\n", report.Answer)
	fmt.Fprintf(w, "\n(%.2f초 소요)\n", report.ProcessingTime)
}

// WriteIngredients writes an extracted ingredient list to w in the given
// format. Used by the ocr command, which stops before analysis.
func WriteIngredients(w io.Writer, ingredients []string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"extracted_ingredients": ingredients,
			"ingredients_count":     len(ingredients),
		})
	default:
		if len(ingredients) == 0 {
			fmt.Fprintln(w, "추출된 성분이 없습니다.")
			return nil
		}
		for i, ing := range ingredients {
			fmt.Fprintf(w, "%d. %s\n", i+1, ing)
		}
		return nil
	}
}

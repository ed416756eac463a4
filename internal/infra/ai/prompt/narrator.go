package prompt

import (
	"encoding/json"
	"fmt"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// GetSystemPrompt instructs the model to write a cautious analyst narrative.
func GetSystemPrompt() string {
	return `You are a procurement-integrity analyst. You receive the JSON evidence of one automated bid-collusion assessment and must write a short narrative for a human reviewer.

Requirements:
- Plain text only, 2 to 4 paragraphs, no markdown, no lists, no JSON.
- Open with the overall risk level and what drives it.
- Walk through the strongest findings: which documents, which companies, what the evidence shows.
- The signals are statistical indicators, not proof of wrongdoing; keep the language conditional ("suggests", "is consistent with") and never assert guilt.
- If detectors are marked degraded, say which signal axes were unavailable.
- If the assessment is marked insufficient_data, say so and stop there.`
}

// GetUserPrompt builds a compact user message from the assessment evidence.
// Findings are truncated to keep the request well inside the context budget.
func GetUserPrompt(a *domain.RiskAssessment) string {
	const maxFindings = 12

	view := struct {
		ProjectID        string                    `json:"project_id"`
		Score            float64                   `json:"score"`
		Level            domain.RiskLevel          `json:"level"`
		DocumentCount    int                       `json:"document_count"`
		InsufficientData bool                      `json:"insufficient_data,omitempty"`
		Degraded         []domain.DegradedDetector `json:"degraded,omitempty"`
		Findings         []domain.Finding          `json:"findings"`
		FindingsOmitted  int                       `json:"findings_omitted,omitempty"`
	}{
		ProjectID:        a.ProjectID,
		Score:            a.Score,
		Level:            a.Level,
		DocumentCount:    a.DocumentCount,
		InsufficientData: a.InsufficientData,
		Degraded:         a.Degraded,
		Findings:         a.Findings,
	}
	if len(view.Findings) > maxFindings {
		view.FindingsOmitted = len(view.Findings) - maxFindings
		view.Findings = view.Findings[:maxFindings]
	}

	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Sprintf("Assessment %s: level %s, score %.2f over %d documents.",
			a.ID, a.Level, a.Score, a.DocumentCount)
	}
	return "Write the narrative for this assessment:\n" + string(b)
}

package application

import (
	"encoding/json"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// MarshalReport serializes an assessment into the exported evidence report.
func MarshalReport(a *domain.RiskAssessment) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

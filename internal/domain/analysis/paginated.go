package analysis

// PaginatedAssessments represents a paginated response with data and metadata
type PaginatedAssessments struct {
	Data       []*RiskAssessment `json:"data"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Total      int64             `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

package models

// ProcessTag identifies the overarching legal process inferred from the set
// of document types present in a batch
type ProcessTag string

const (
	ProcessCompanyIncorporation    ProcessTag = "Company Incorporation"
	ProcessCommercialLicensing     ProcessTag = "Commercial Licensing"
	ProcessEmploymentDocumentation ProcessTag = "Employment Documentation"
	ProcessUnknown                 ProcessTag = "Unknown"
)

// Report is the consolidated result of a review run. missing_document is nil
// unless a process was identified and required documents are absent.
type Report struct {
	Process           ProcessTag             `json:"process"`
	DocumentsUploaded int                    `json:"documents_uploaded"`
	RequiredDocuments int                    `json:"required_documents"`
	MissingDocument   []string               `json:"missing_document"`
	IssuesFound       []Issue                `json:"issues_found"`
	Completeness      []CompletenessAnalysis `json:"completeness,omitempty"`
}

package models

// DocType is a document type tag. The known ADGM corporate document types are
// listed below; fallback classification may produce generic tags such as
// "General Agreement" or "Short Form/Notice".
type DocType string

const (
	DocTypeUnknown                  DocType = "Unknown"
	DocTypeArticlesOfAssociation    DocType = "Articles of Association"
	DocTypeMemorandumOfAssociation  DocType = "Memorandum of Association"
	DocTypeUBODeclaration           DocType = "UBO Declaration"
	DocTypeRegisterOfMembers        DocType = "Register of Members and Directors"
	DocTypeIncorporationApplication DocType = "Incorporation Application"
	DocTypeBoardResolution          DocType = "Board Resolution"
	DocTypeShareholderResolution    DocType = "Shareholder Resolution"
	DocTypeEmploymentContract       DocType = "Employment Contract"
	DocTypeCommercialLicense        DocType = "Commercial License Application"
	DocTypePowerOfAttorney          DocType = "Power of Attorney"
	DocTypeLeaseAgreement           DocType = "Lease Agreement"
	DocTypeNDA                      DocType = "Non-Disclosure Agreement"
)

// Classification pairs a detected document type with a confidence in [0,1]
type Classification struct {
	Type       DocType `json:"type"`
	Confidence float64 `json:"confidence"`
}

// CompletenessAnalysis reports which required elements of the primary
// detected type are present in a document
type CompletenessAnalysis struct {
	Document          string    `json:"document,omitempty"`
	DetectedTypes     []DocType `json:"detected_types"`
	CompletenessScore float64   `json:"completeness_score"`
	MissingElements   []string  `json:"missing_elements"`
	PresentElements   []string  `json:"present_elements"`
}

package service

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"adgm-review-backend/models"
)

var ErrInvalidPattern = errors.New("invalid document pattern table")

// typePattern holds the keyword evidence used to score one document type
type typePattern struct {
	docType   models.DocType
	primary   []string
	secondary []string
	exclusion []string
	structure []string
	threshold float64
}

// documentPatterns is evaluated in declaration order so classification is
// deterministic for equal confidence scores
var documentPatterns = []typePattern{
	{
		docType:   models.DocTypeArticlesOfAssociation,
		primary:   []string{"articles of association", "articles of incorporation"},
		secondary: []string{"share capital", "directors", "shareholders", "company constitution"},
		exclusion: []string{"memorandum"},
		structure: []string{"article 1", "article 2", "clause"},
		threshold: 0.6,
	},
	{
		docType:   models.DocTypeMemorandumOfAssociation,
		primary:   []string{"memorandum of association", "memorandum of incorporation"},
		secondary: []string{"company name", "registered office", "objects", "liability"},
		exclusion: []string{"articles"},
		structure: []string{"whereas", "now therefore"},
		threshold: 0.6,
	},
	{
		docType:   models.DocTypeUBODeclaration,
		primary:   []string{"ultimate beneficial owner", "ubo declaration", "beneficial ownership"},
		secondary: []string{"25%", "twenty-five percent", "ownership", "control"},
		structure: []string{"declare", "confirm", "certify"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeRegisterOfMembers,
		primary:   []string{"register of members", "register of directors", "members register"},
		secondary: []string{"shareholder", "director", "appointment", "resignation"},
		structure: []string{"name", "address", "shares held", "date of appointment"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeIncorporationApplication,
		primary:   []string{"incorporation application", "application for incorporation", "company formation"},
		secondary: []string{"proposed name", "business activity", "applicant"},
		structure: []string{"applicant details", "proposed activities"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeBoardResolution,
		primary:   []string{"board resolution", "directors' resolution", "board meeting"},
		secondary: []string{"resolved", "directors", "meeting", "unanimous"},
		exclusion: []string{"shareholder"},
		structure: []string{"it was resolved", "resolved that", "meeting held"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeShareholderResolution,
		primary:   []string{"shareholder resolution", "shareholders' resolution", "general meeting"},
		secondary: []string{"resolved", "shareholders", "meeting", "ordinary resolution"},
		exclusion: []string{"board", "directors"},
		structure: []string{"it was resolved", "resolved that", "meeting held"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeEmploymentContract,
		primary:   []string{"employment contract", "employment agreement", "service agreement"},
		secondary: []string{"employee", "employer", "salary", "termination", "duties"},
		structure: []string{"terms of employment", "job description", "remuneration"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeCommercialLicense,
		primary:   []string{"commercial license", "license application", "business license"},
		secondary: []string{"trade name", "business activity", "premises"},
		structure: []string{"license details", "business activities"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypePowerOfAttorney,
		primary:   []string{"power of attorney", "poa", "attorney"},
		secondary: []string{"appoint", "attorney", "behalf", "authorize"},
		structure: []string{"hereby appoint", "full power", "in witness whereof"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeLeaseAgreement,
		primary:   []string{"lease agreement", "tenancy agreement", "rental agreement"},
		secondary: []string{"landlord", "tenant", "premises", "rent", "lease term"},
		structure: []string{"lease term", "rental amount", "premises description"},
		threshold: 0.5,
	},
	{
		docType:   models.DocTypeNDA,
		primary:   []string{"non-disclosure agreement", "nda", "confidentiality agreement"},
		secondary: []string{"confidential", "proprietary", "disclosure", "information"},
		structure: []string{"confidential information", "non-disclosure"},
		threshold: 0.5,
	},
}

// The table is compile-time data, so a malformed entry is a programming
// error and fails fast at load
func init() {
	if err := validatePatterns(documentPatterns); err != nil {
		panic(err)
	}
}

// validatePatterns rejects pattern entries that would silently make a type
// undetectable: empty keyword sets, duplicate types, thresholds outside [0, 1]
func validatePatterns(patterns []typePattern) error {
	seen := make(map[models.DocType]bool, len(patterns))
	for _, p := range patterns {
		if p.docType == "" {
			return fmt.Errorf("%w: entry with empty document type", ErrInvalidPattern)
		}
		if seen[p.docType] {
			return fmt.Errorf("%w: duplicate entry for %s", ErrInvalidPattern, p.docType)
		}
		seen[p.docType] = true

		if len(p.primary) == 0 {
			return fmt.Errorf("%w: %s has no primary keywords", ErrInvalidPattern, p.docType)
		}
		if len(p.secondary) == 0 {
			return fmt.Errorf("%w: %s has no secondary keywords", ErrInvalidPattern, p.docType)
		}
		if len(p.structure) == 0 {
			return fmt.Errorf("%w: %s has no structure indicators", ErrInvalidPattern, p.docType)
		}
		if p.threshold < 0 || p.threshold > 1 {
			return fmt.Errorf("%w: %s threshold %.2f outside [0, 1]", ErrInvalidPattern, p.docType, p.threshold)
		}
	}
	return nil
}

// keyword weights for confidence scoring
const (
	primaryWeight      = 0.5
	secondaryWeight    = 0.1
	structureWeight    = 0.15
	exclusionPenalty   = 0.2
	multiPrimaryBonus  = 0.1
	fallbackConfidence = 0.3
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// TypeClassifier detects ADGM document types from text using weighted
// keyword evidence
type TypeClassifier struct{}

// NewTypeClassifier creates a new type classifier
func NewTypeClassifier() *TypeClassifier {
	return &TypeClassifier{}
}

// Classify detects document types from text, most confident first. Empty
// input yields a single Unknown result at zero confidence; input matching no
// pattern yields a generic fallback tag at low confidence.
func (c *TypeClassifier) Classify(text string) []models.Classification {
	if strings.TrimSpace(text) == "" {
		return []models.Classification{{Type: models.DocTypeUnknown, Confidence: 0.0}}
	}

	normalized := whitespacePattern.ReplaceAllString(strings.ToLower(text), " ")

	var detected []models.Classification
	for _, pattern := range documentPatterns {
		confidence := scoreConfidence(normalized, pattern)
		if confidence >= pattern.threshold {
			detected = append(detected, models.Classification{Type: pattern.docType, Confidence: confidence})
		}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		return detected[i].Confidence > detected[j].Confidence
	})

	if len(detected) == 0 {
		detected = append(detected, models.Classification{
			Type:       fallbackType(normalized),
			Confidence: fallbackConfidence,
		})
	}

	return detected
}

// scoreConfidence computes the weighted keyword score for one type,
// normalized by the total achievable score and clamped to [0, 1]
func scoreConfidence(text string, pattern typePattern) float64 {
	score := 0.0
	totalPossible := 0.0

	primaryFound := 0
	for _, keyword := range pattern.primary {
		totalPossible += primaryWeight
		if strings.Contains(text, keyword) {
			primaryFound++
			score += primaryWeight
		}
	}
	if primaryFound > 1 {
		score += multiPrimaryBonus
	}

	for _, keyword := range pattern.secondary {
		totalPossible += secondaryWeight
		if strings.Contains(text, keyword) {
			score += secondaryWeight
		}
	}

	for _, indicator := range pattern.structure {
		totalPossible += structureWeight
		if strings.Contains(text, indicator) {
			score += structureWeight
		}
	}

	for _, exclusion := range pattern.exclusion {
		if strings.Contains(text, exclusion) {
			score -= exclusionPenalty
		}
	}

	if totalPossible == 0 {
		return 0.0
	}
	confidence := score / totalPossible
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}

// fallbackType produces a generic tag when no pattern clears its threshold
func fallbackType(text string) models.DocType {
	indicators := []struct {
		keyword string
		tag     string
	}{
		{"contract", "Contract"},
		{"agreement", "Agreement"},
		{"resolution", "Resolution"},
		{"application", "Application"},
		{"declaration", "Declaration"},
		{"certificate", "Certificate"},
		{"notice", "Notice"},
		{"policy", "Policy"},
		{"procedure", "Procedure"},
		{"form", "Form"},
	}

	for _, ind := range indicators {
		if strings.Contains(text, ind.keyword) {
			return models.DocType("General " + ind.tag)
		}
	}

	wordCount := len(strings.Fields(text))
	switch {
	case wordCount < 100:
		return models.DocType("Short Form/Notice")
	case wordCount > 2000:
		return models.DocType("Complex Legal Document")
	default:
		return models.DocType("Standard Business Document")
	}
}

// DocumentRequirements describes what a complete document of a given type
// should contain
type DocumentRequirements struct {
	RequiredSections   []string
	TypicalClauses     []string
	SignaturesRequired []string
	WitnessesRequired  bool
}

var typeRequirements = map[models.DocType]DocumentRequirements{
	models.DocTypeArticlesOfAssociation: {
		RequiredSections:   []string{"Company Name", "Share Capital", "Directors", "Objects"},
		TypicalClauses:     []string{"Liability Limitation", "Share Transfer", "Board Powers"},
		SignaturesRequired: []string{"Directors", "Shareholders"},
	},
	models.DocTypeMemorandumOfAssociation: {
		RequiredSections:   []string{"Company Name", "Registered Office", "Objects", "Liability"},
		TypicalClauses:     []string{"Subscriber Details", "Share Capital"},
		SignaturesRequired: []string{"Subscribers"},
		WitnessesRequired:  true,
	},
	models.DocTypeUBODeclaration: {
		RequiredSections:   []string{"Personal Details", "Ownership Details", "Declaration"},
		TypicalClauses:     []string{"25% Threshold", "Control Definition"},
		SignaturesRequired: []string{"UBO", "Company Officer"},
	},
	models.DocTypeBoardResolution: {
		RequiredSections:   []string{"Meeting Details", "Resolutions", "Voting"},
		TypicalClauses:     []string{"Meeting Notice", "Quorum", "Unanimous Consent"},
		SignaturesRequired: []string{"Directors"},
	},
	models.DocTypeEmploymentContract: {
		RequiredSections:   []string{"Parties", "Job Description", "Remuneration", "Termination"},
		TypicalClauses:     []string{"Confidentiality", "Non-Compete", "Benefits"},
		SignaturesRequired: []string{"Employee", "Employer"},
	},
}

// Requirements returns the completeness requirements for a document type.
// Unlisted types get a generic requirement set.
func (c *TypeClassifier) Requirements(docType models.DocType) DocumentRequirements {
	if req, ok := typeRequirements[docType]; ok {
		return req
	}
	return DocumentRequirements{
		SignaturesRequired: []string{"Parties"},
	}
}

var signatureIndicators = []string{"signature", "signed", "executed", "witness"}

// AnalyzeCompleteness checks the text against the requirements of the primary
// detected type
func (c *TypeClassifier) AnalyzeCompleteness(text string, docTypes []models.DocType) models.CompletenessAnalysis {
	analysis := models.CompletenessAnalysis{
		DetectedTypes:   docTypes,
		MissingElements: []string{},
		PresentElements: []string{},
	}

	if len(docTypes) == 0 || (len(docTypes) == 1 && docTypes[0] == models.DocTypeUnknown) {
		return analysis
	}

	requirements := c.Requirements(docTypes[0])
	textLower := strings.ToLower(text)

	totalRequirements := len(requirements.RequiredSections)
	presentCount := 0
	for _, section := range requirements.RequiredSections {
		if strings.Contains(textLower, strings.ToLower(section)) {
			analysis.PresentElements = append(analysis.PresentElements, section)
			presentCount++
		} else {
			analysis.MissingElements = append(analysis.MissingElements, section)
		}
	}

	hasSignatures := false
	for _, indicator := range signatureIndicators {
		if strings.Contains(textLower, indicator) {
			hasSignatures = true
			break
		}
	}
	if len(requirements.SignaturesRequired) > 0 && !hasSignatures {
		analysis.MissingElements = append(analysis.MissingElements, "Signature Block")
	} else if hasSignatures {
		analysis.PresentElements = append(analysis.PresentElements, "Signature Block")
		presentCount++
		totalRequirements++
	}

	if totalRequirements > 0 {
		analysis.CompletenessScore = float64(presentCount) / float64(totalRequirements)
	}

	return analysis
}

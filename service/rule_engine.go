package service

import (
	"fmt"
	"regexp"
	"strings"

	"adgm-review-backend/models"
)

// RuleEngine runs deterministic red-flag checks over document text. Checks
// never call out to external services; the same text and type always produce
// the same issues in the same order.
type RuleEngine struct{}

// NewRuleEngine creates a new rule engine
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

var (
	uaeFederalCourtPattern = regexp.MustCompile(`\buae federal courts?\b`)
	dubaiCourtPattern      = regexp.MustCompile(`\bdubai courts?\b`)
	adgmCourtPattern       = regexp.MustCompile(`\badgm courts?\b`)
	uaeCivilCodePattern    = regexp.MustCompile(`\buae civil code\b`)
	adgmPattern            = regexp.MustCompile(`\badgm\b`)
	legalDesignationPattern  = regexp.MustCompile(`\bllc\b|\blimited\b|\bltd\b`)
	twentyFivePercentPattern = regexp.MustCompile(`\btwenty[- ]five percent\b`)
	usdPattern               = regexp.MustCompile(`\busd\b|\bus dollar\b`)

	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bsignature\b`),
		regexp.MustCompile(`\bsigned by\b`),
		regexp.MustCompile(`\bfor and on behalf\b`),
		regexp.MustCompile(`\bexecuted\b`),
		regexp.MustCompile(`\bin witness whereof\b`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),
	}
)

// Check runs every applicable rule family over the text. When the document
// type is unknown all type-specific families run; otherwise only the family
// matching the type.
func (e *RuleEngine) Check(text string, docType models.DocType) []models.Issue {
	var issues []models.Issue
	textLower := strings.ToLower(text)

	issues = append(issues, e.checkJurisdiction(text, textLower)...)
	issues = append(issues, e.checkSignatures(text, textLower)...)

	if docType != "" && docType != models.DocTypeUnknown {
		issues = append(issues, e.checkTypeSpecific(text, textLower, docType)...)
	} else {
		issues = append(issues, e.checkArticlesOfAssociation(textLower)...)
		issues = append(issues, e.checkMemorandumOfAssociation(textLower)...)
		issues = append(issues, e.checkUBODeclaration(textLower)...)
		issues = append(issues, e.checkIncorporationApplication(textLower)...)
	}

	issues = append(issues, e.checkADGMCompliance(text, textLower)...)
	issues = append(issues, e.checkLanguageAndFormatting(text, textLower)...)

	return issues
}

func (e *RuleEngine) checkJurisdiction(text, textLower string) []models.Issue {
	var issues []models.Issue

	if uaeFederalCourtPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "References UAE Federal Courts instead of ADGM Courts",
			Severity:    models.SeverityHigh,
			Suggestion:  `Replace with "ADGM Courts" for proper jurisdiction`,
			Section:     findSection(text, "uae federal court"),
		})
	}

	if dubaiCourtPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "References Dubai Courts instead of ADGM Courts",
			Severity:    models.SeverityHigh,
			Suggestion:  "Update jurisdiction to ADGM Courts",
			Section:     findSection(text, "dubai court"),
		})
	}

	if strings.Contains(textLower, "jurisdiction") && !adgmCourtPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "Jurisdiction clause present but does not specify ADGM Courts",
			Severity:    models.SeverityHigh,
			Suggestion:  "Specify ADGM Courts as the governing jurisdiction",
			Section:     findSection(text, "jurisdiction"),
		})
	}

	if uaeCivilCodePattern.MatchString(textLower) && !adgmPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "References UAE Civil Code without ADGM context",
			Severity:    models.SeverityMedium,
			Suggestion:  "Specify ADGM laws take precedence where applicable",
			Section:     findSection(text, "uae civil code"),
		})
	}

	return issues
}

func (e *RuleEngine) checkSignatures(text, textLower string) []models.Issue {
	var issues []models.Issue

	hasSignature := false
	for _, pattern := range signaturePatterns {
		if pattern.MatchString(textLower) {
			hasSignature = true
			break
		}
	}

	if !hasSignature {
		issues = append(issues, models.Issue{
			Description: "Missing signature block or execution clause",
			Severity:    models.SeverityHigh,
			Suggestion:  "Add proper signature block with name, title, and date fields",
			Section:     "End of document",
		})
	}

	if (strings.Contains(textLower, "deed") || strings.Contains(textLower, "power of attorney")) &&
		!strings.Contains(textLower, "witness") {
		issues = append(issues, models.Issue{
			Description: "Document may require witness signature",
			Severity:    models.SeverityMedium,
			Suggestion:  "Consider adding witness signature requirements",
			Section:     findSection(text, "signature"),
		})
	}

	return issues
}

func (e *RuleEngine) checkTypeSpecific(text, textLower string, docType models.DocType) []models.Issue {
	typeLower := strings.ToLower(string(docType))
	switch {
	case strings.Contains(typeLower, "articles of association"):
		return e.checkArticlesOfAssociation(textLower)
	case strings.Contains(typeLower, "memorandum of association"):
		return e.checkMemorandumOfAssociation(textLower)
	case strings.Contains(typeLower, "ubo"):
		return e.checkUBODeclaration(textLower)
	case strings.Contains(typeLower, "incorporation"):
		return e.checkIncorporationApplication(textLower)
	default:
		return nil
	}
}

func (e *RuleEngine) checkArticlesOfAssociation(textLower string) []models.Issue {
	if !strings.Contains(textLower, "articles of association") {
		return nil
	}

	var issues []models.Issue

	if !strings.Contains(textLower, "share capital") && !strings.Contains(textLower, "shares") {
		issues = append(issues, models.Issue{
			Description: "Missing share capital provisions in Articles of Association",
			Severity:    models.SeverityHigh,
			Suggestion:  "Add clause specifying authorized share capital and classes of shares",
			Section:     "Share Capital",
		})
	}

	if !strings.Contains(textLower, "director") {
		issues = append(issues, models.Issue{
			Description: "Missing directors provisions",
			Severity:    models.SeverityHigh,
			Suggestion:  "Add provisions for appointment and powers of directors",
			Section:     "Directors",
		})
	}

	if !strings.Contains(textLower, "objects") && !strings.Contains(textLower, "purpose") {
		issues = append(issues, models.Issue{
			Description: "Missing company objects or purpose clause",
			Severity:    models.SeverityMedium,
			Suggestion:  "Include clause defining company objects and permitted activities",
			Section:     "Company Objects",
		})
	}

	return issues
}

func (e *RuleEngine) checkMemorandumOfAssociation(textLower string) []models.Issue {
	if !strings.Contains(textLower, "memorandum of association") {
		return nil
	}

	var issues []models.Issue

	if !legalDesignationPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "Company name may not include proper legal designation",
			Severity:    models.SeverityMedium,
			Suggestion:  "Ensure company name includes LLC, Limited, or Ltd as appropriate",
			Section:     "Company Name",
		})
	}

	if !strings.Contains(textLower, "registered office") && !strings.Contains(textLower, "registered address") {
		issues = append(issues, models.Issue{
			Description: "Missing registered office clause",
			Severity:    models.SeverityHigh,
			Suggestion:  "Include registered office address in ADGM",
			Section:     "Registered Office",
		})
	}

	return issues
}

var uboRequiredFields = []string{"full name", "address", "nationality", "date of birth"}

func (e *RuleEngine) checkUBODeclaration(textLower string) []models.Issue {
	if !strings.Contains(textLower, "ultimate beneficial owner") && !strings.Contains(textLower, "ubo") {
		return nil
	}

	var issues []models.Issue

	if !strings.Contains(textLower, "25%") && !twentyFivePercentPattern.MatchString(textLower) {
		issues = append(issues, models.Issue{
			Description: "Missing 25% ownership threshold reference",
			Severity:    models.SeverityMedium,
			Suggestion:  "Specify 25% ownership threshold for UBO determination",
			Section:     "Ownership Threshold",
		})
	}

	for _, field := range uboRequiredFields {
		if !strings.Contains(textLower, field) {
			issues = append(issues, models.Issue{
				Description: fmt.Sprintf("May be missing %s field for UBO", field),
				Severity:    models.SeverityMedium,
				Suggestion:  fmt.Sprintf("Ensure %s is included for each UBO", field),
				Section:     "UBO Information",
			})
		}
	}

	return issues
}

func (e *RuleEngine) checkIncorporationApplication(textLower string) []models.Issue {
	if !strings.Contains(textLower, "incorporation") && !strings.Contains(textLower, "application") {
		return nil
	}

	requiredElements := []struct {
		element string
		section string
	}{
		{"proposed company name", "Company Name"},
		{"business activity", "Business Activity"},
		{"share capital", "Share Capital"},
		{"registered office", "Registered Office"},
	}

	var issues []models.Issue
	for _, req := range requiredElements {
		if !strings.Contains(textLower, req.element) {
			issues = append(issues, models.Issue{
				Description: fmt.Sprintf("Missing %s in incorporation application", req.element),
				Severity:    models.SeverityHigh,
				Suggestion:  fmt.Sprintf("Include %s details in the application", req.element),
				Section:     req.section,
			})
		}
	}

	return issues
}

var complianceTerms = []string{"compliant", "compliance", "regulatory", "regulation"}

func (e *RuleEngine) checkADGMCompliance(text, textLower string) []models.Issue {
	var issues []models.Issue

	if !strings.Contains(textLower, "adgm") && !strings.Contains(textLower, "abu dhabi global market") {
		issues = append(issues, models.Issue{
			Description: "Document does not reference ADGM jurisdiction",
			Severity:    models.SeverityMedium,
			Suggestion:  "Include reference to ADGM (Abu Dhabi Global Market) jurisdiction",
			Section:     "General",
		})
	}

	if usdPattern.MatchString(textLower) && !strings.Contains(textLower, "aed") {
		issues = append(issues, models.Issue{
			Description: "References USD without AED alternative",
			Severity:    models.SeverityLow,
			Suggestion:  "Consider including AED (UAE Dirham) as alternative currency",
			Section:     findSection(text, "USD"),
		})
	}

	hasComplianceRef := false
	for _, term := range complianceTerms {
		if strings.Contains(textLower, term) {
			hasComplianceRef = true
			break
		}
	}
	// only substantial documents are expected to carry compliance language
	if len(strings.Fields(text)) > 200 && !hasComplianceRef {
		issues = append(issues, models.Issue{
			Description: "Document lacks compliance or regulatory references",
			Severity:    models.SeverityLow,
			Suggestion:  "Consider adding compliance statements relevant to ADGM regulations",
			Section:     "General",
		})
	}

	return issues
}

var ambiguousPhrases = []struct {
	phrase     string
	suggestion string
}{
	{"may or may not", "Use definitive language instead of ambiguous terms"},
	{"as appropriate", "Specify exact conditions or requirements"},
	{"if necessary", "Define when such necessity arises"},
	{"reasonable", "Define what constitutes reasonable in this context"},
}

func (e *RuleEngine) checkLanguageAndFormatting(text, textLower string) []models.Issue {
	var issues []models.Issue

	for _, amb := range ambiguousPhrases {
		if strings.Contains(textLower, amb.phrase) {
			issues = append(issues, models.Issue{
				Description: fmt.Sprintf("Ambiguous language detected: %q", amb.phrase),
				Severity:    models.SeverityLow,
				Suggestion:  amb.suggestion,
				Section:     findSection(text, amb.phrase),
			})
		}
	}

	if !strings.Contains(textLower, "shall") && strings.Contains(textLower, "will") {
		issues = append(issues, models.Issue{
			Description: `Uses "will" instead of "shall" for obligations`,
			Severity:    models.SeverityLow,
			Suggestion:  `Use "shall" for legal obligations and "will" for future actions`,
			Section:     "General",
		})
	}

	if !strings.Contains(textLower, "definition") && !strings.Contains(textLower, "means") &&
		len(strings.Fields(text)) > 500 {
		issues = append(issues, models.Issue{
			Description: "Long document may benefit from definitions section",
			Severity:    models.SeverityLow,
			Suggestion:  "Consider adding a definitions section for key terms",
			Section:     "Structure",
		})
	}

	for _, pattern := range datePatterns {
		if match := pattern.FindString(text); match != "" {
			issues = append(issues, models.Issue{
				Description: "Date format may be ambiguous",
				Severity:    models.SeverityLow,
				Suggestion:  `Use unambiguous date format (e.g., "1st January 2024")`,
				Section:     findSection(text, match),
			})
			break
		}
	}

	return issues
}

// findSection locates the heading above the first line containing the search
// term. A heading is an ALL-CAPS line, a line starting with "Section" or
// "Article", or a line ending with a colon, within the five preceding lines.
func findSection(text, searchTerm string) string {
	lines := strings.Split(text, "\n")
	termLower := strings.ToLower(searchTerm)

	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), termLower) {
			continue
		}
		start := i - 5
		if start < 0 {
			start = 0
		}
		// nearest heading wins
		for j := i - 1; j >= start; j-- {
			candidate := strings.TrimSpace(lines[j])
			if candidate == "" {
				continue
			}
			if isAllUpper(lines[j]) ||
				strings.HasPrefix(lines[j], "Section") ||
				strings.HasPrefix(lines[j], "Article") ||
				strings.HasSuffix(lines[j], ":") {
				return candidate
			}
		}
		return fmt.Sprintf("Line %d", i+1)
	}
	return "General"
}

// isAllUpper reports whether a line has letters and all of them are upper case
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// GetSeverityScore aggregates issue severities into a total score and an
// overall priority: High when any High issue exists, then Medium, then Low
func (e *RuleEngine) GetSeverityScore(issues []models.Issue) models.SeverityScore {
	counts := map[models.Severity]int{
		models.SeverityHigh:   0,
		models.SeverityMedium: 0,
		models.SeverityLow:    0,
	}

	total := 0
	for _, issue := range issues {
		severity := issue.Severity
		if _, ok := counts[severity]; !ok {
			severity = models.SeverityMedium
		}
		counts[severity]++
		total += severity.Weight()
	}

	priority := models.SeverityLow
	if counts[models.SeverityHigh] > 0 {
		priority = models.SeverityHigh
	} else if counts[models.SeverityMedium] > 0 {
		priority = models.SeverityMedium
	}

	return models.SeverityScore{
		TotalScore:     total,
		SeverityCounts: counts,
		Priority:       priority,
	}
}

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgm-review-backend/models"
)

const articlesSample = `ARTICLES OF ASSOCIATION

Article 1 - Company Constitution
The share capital of the company shall be divided into ordinary shares.
The directors shall manage the business of the company.
The shareholders shall exercise their rights under this clause.
`

func TestClassify_ArticlesOfAssociation(t *testing.T) {
	classifier := NewTypeClassifier()

	results := classifier.Classify(articlesSample)
	require.NotEmpty(t, results)
	assert.Equal(t, models.DocTypeArticlesOfAssociation, results[0].Type)
	assert.GreaterOrEqual(t, results[0].Confidence, 0.6)
}

func TestClassify_EmptyText(t *testing.T) {
	classifier := NewTypeClassifier()

	for _, text := range []string{"", "   ", "\n\t\n"} {
		results := classifier.Classify(text)
		require.Len(t, results, 1)
		assert.Equal(t, models.DocTypeUnknown, results[0].Type)
		assert.Equal(t, 0.0, results[0].Confidence)
	}
}

func TestClassify_ConfidenceNonIncreasing(t *testing.T) {
	classifier := NewTypeClassifier()

	text := `Board Resolution of the directors. It was resolved that the meeting held
	approved the shareholder resolution at the general meeting. Resolved that the
	ordinary resolution passes.`

	results := classifier.Classify(text)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Confidence, results[i].Confidence)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

func TestClassify_FallbackGenericTag(t *testing.T) {
	classifier := NewTypeClassifier()

	results := classifier.Classify("This contract is made between two parties for the supply of goods.")
	require.Len(t, results, 1)
	assert.Equal(t, models.DocType("General Contract"), results[0].Type)
	assert.Equal(t, fallbackConfidence, results[0].Confidence)
}

func TestClassify_FallbackByLength(t *testing.T) {
	classifier := NewTypeClassifier()

	short := classifier.Classify("brief note about nothing legal")
	require.Len(t, short, 1)
	assert.Equal(t, models.DocType("Short Form/Notice"), short[0].Type)

	long := classifier.Classify(strings.Repeat("lorem ipsum dolor sit amet ", 500))
	require.Len(t, long, 1)
	assert.Equal(t, models.DocType("Complex Legal Document"), long[0].Type)
}

func TestClassify_Deterministic(t *testing.T) {
	classifier := NewTypeClassifier()

	first := classifier.Classify(articlesSample)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, classifier.Classify(articlesSample))
	}
}

func TestClassify_ExclusionPenalty(t *testing.T) {
	withExclusion := "articles of association and the memorandum of the company with share capital and directors and clause"
	withoutExclusion := "articles of association of the company with share capital and directors and clause"

	scoreWith := scoreConfidence(withExclusion, documentPatterns[0])
	scoreWithout := scoreConfidence(withoutExclusion, documentPatterns[0])
	assert.Less(t, scoreWith, scoreWithout)
}

func TestValidatePatterns_AcceptsShippedTable(t *testing.T) {
	assert.NoError(t, validatePatterns(documentPatterns))
}

func TestValidatePatterns_RejectsMalformedEntries(t *testing.T) {
	valid := typePattern{
		docType:   models.DocType("Test Document"),
		primary:   []string{"test document"},
		secondary: []string{"test"},
		structure: []string{"section 1"},
		threshold: 0.5,
	}

	cases := []struct {
		name   string
		mutate func(p *typePattern)
	}{
		{"empty type", func(p *typePattern) { p.docType = "" }},
		{"no primary keywords", func(p *typePattern) { p.primary = nil }},
		{"no secondary keywords", func(p *typePattern) { p.secondary = nil }},
		{"no structure indicators", func(p *typePattern) { p.structure = nil }},
		{"threshold above one", func(p *typePattern) { p.threshold = 7.0 }},
		{"negative threshold", func(p *typePattern) { p.threshold = -0.1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := valid
			tc.mutate(&broken)
			err := validatePatterns([]typePattern{broken})
			assert.ErrorIs(t, err, ErrInvalidPattern)
		})
	}

	err := validatePatterns([]typePattern{valid, valid})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestAnalyzeCompleteness_UnknownType(t *testing.T) {
	classifier := NewTypeClassifier()

	analysis := classifier.AnalyzeCompleteness("some text", []models.DocType{models.DocTypeUnknown})
	assert.Equal(t, 0.0, analysis.CompletenessScore)
	assert.Empty(t, analysis.MissingElements)
	assert.Empty(t, analysis.PresentElements)
}

func TestAnalyzeCompleteness_PartialDocument(t *testing.T) {
	classifier := NewTypeClassifier()

	text := `Articles of Association.
	Company Name: Example Holdings Ltd
	Share Capital: 100,000 ordinary shares
	Signed by the directors.`

	analysis := classifier.AnalyzeCompleteness(text, []models.DocType{models.DocTypeArticlesOfAssociation})
	assert.Contains(t, analysis.PresentElements, "Company Name")
	assert.Contains(t, analysis.PresentElements, "Share Capital")
	assert.Contains(t, analysis.PresentElements, "Signature Block")
	assert.Contains(t, analysis.MissingElements, "Objects")
	assert.Greater(t, analysis.CompletenessScore, 0.0)
	assert.LessOrEqual(t, analysis.CompletenessScore, 1.0)
}

func TestRequirements_UnlistedTypeGetsGenericSet(t *testing.T) {
	classifier := NewTypeClassifier()

	req := classifier.Requirements(models.DocTypeLeaseAgreement)
	assert.Empty(t, req.RequiredSections)
	assert.Equal(t, []string{"Parties"}, req.SignaturesRequired)
}

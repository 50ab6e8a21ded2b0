package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgm-review-backend/models"
)

type fakeCitationProvider struct {
	err   error
	calls int
}

func (f *fakeCitationProvider) CitationForIssue(_ context.Context, query string) (*models.Citation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Citation{
		Query: query,
		Summary: models.CitationSummary{
			Citation: "ADGM Companies Regulations 2020, page 7",
			Excerpt:  "supporting passage",
		},
	}, nil
}

func TestInferProcess_CompanyIncorporation(t *testing.T) {
	process := InferProcess([]models.DocType{
		models.DocTypeArticlesOfAssociation,
		models.DocTypeMemorandumOfAssociation,
	})
	assert.Equal(t, models.ProcessCompanyIncorporation, process)
}

func TestInferProcess_BelowThreshold(t *testing.T) {
	// one of five incorporation documents is below both the 40% bar and the
	// two-document floor
	process := InferProcess([]models.DocType{models.DocTypeArticlesOfAssociation})
	assert.Equal(t, models.ProcessUnknown, process)

	assert.Equal(t, models.ProcessUnknown, InferProcess(nil))
}

func TestInferProcess_EmploymentDocumentation(t *testing.T) {
	process := InferProcess([]models.DocType{
		models.DocTypeEmploymentContract,
		"Salary Certificate",
	})
	assert.Equal(t, models.ProcessEmploymentDocumentation, process)
}

func TestInferProcess_FirstMatchWins(t *testing.T) {
	// enough overlap for both incorporation and licensing; declaration order
	// decides
	process := InferProcess([]models.DocType{
		models.DocTypeArticlesOfAssociation,
		models.DocTypeMemorandumOfAssociation,
		models.DocTypeCommercialLicense,
		models.DocTypeLeaseAgreement,
	})
	assert.Equal(t, models.ProcessCompanyIncorporation, process)
}

func TestAnalyzeDocument_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip container"), 0644))

	svc := NewReviewService()
	analysis := svc.AnalyzeDocument(path)

	assert.Equal(t, []models.DocType{models.DocTypeUnknown}, analysis.types)
	require.Len(t, analysis.issues, 1)
	assert.Equal(t, models.SeverityHigh, analysis.issues[0].Severity)
	assert.Contains(t, analysis.issues[0].Description, "Error reading document")
	assert.Equal(t, "broken.docx", analysis.issues[0].Document)
}

func TestAnalyzeDocument_TagsIssuesWithDocumentName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.docx")
	writeTestDOCX(t, path,
		"This agreement is governed by the UAE Federal Court.",
		"No signature follows.",
	)

	svc := NewReviewService()
	analysis := svc.AnalyzeDocument(path)

	require.NotEmpty(t, analysis.issues)
	for _, issue := range analysis.issues {
		assert.Equal(t, "contract.docx", issue.Document)
		assert.NotEmpty(t, issue.Section)
	}
}

func TestReviewDocuments_NoInput(t *testing.T) {
	svc := NewReviewService()
	_, err := svc.ReviewDocuments(context.Background(), ReviewRequest{OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestReviewDocuments_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	aoa := filepath.Join(dir, "articles.docx")
	writeTestDOCX(t, aoa,
		"ARTICLES OF ASSOCIATION",
		"Article 1 - Company Constitution",
		"The share capital of the company is divided into ordinary shares held by the shareholders.",
		"The directors shall manage the company under this clause.",
		"Disputes shall be referred to the UAE Federal Court.",
		"Signed by the subscribers.",
	)

	moa := filepath.Join(dir, "memorandum.docx")
	writeTestDOCX(t, moa,
		"MEMORANDUM OF ASSOCIATION",
		"WHEREAS the subscribers wish to form a company under the company name stated below.",
		"The registered office and objects of the company are stated herein. The liability of the members is limited.",
		"NOW THEREFORE the subscribers agree as follows.",
		"Signed by each subscriber before a witness.",
	)

	provider := &fakeCitationProvider{}
	svc := NewReviewService(ReviewWithCitations(provider))

	result, err := svc.ReviewDocuments(context.Background(), ReviewRequest{
		Paths:     []string{aoa, moa},
		OutputDir: outDir,
	})
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, models.ProcessCompanyIncorporation, report.Process)
	assert.Equal(t, 2, report.DocumentsUploaded)
	assert.Equal(t, 5, report.RequiredDocuments)
	assert.Contains(t, report.MissingDocument, "UBO Declaration")
	assert.NotContains(t, report.MissingDocument, "Articles of Association")
	require.NotEmpty(t, report.IssuesFound)

	// every issue got a citation from the provider
	assert.Equal(t, len(report.IssuesFound), provider.calls)
	for _, issue := range report.IssuesFound {
		require.NotNil(t, issue.Citation)
		assert.Equal(t, "ADGM Companies Regulations 2020, page 7", issue.Citation.Summary.Citation)
	}

	// annotated copies and the consolidated report land in the output dir
	require.Len(t, result.OutputFiles, 2)
	assert.FileExists(t, filepath.Join(outDir, "reviewed_articles.docx"))
	assert.FileExists(t, filepath.Join(outDir, "reviewed_memorandum.docx"))
	assert.FileExists(t, result.ReportPath)
	assert.Equal(t, filepath.Join(outDir, "consolidated_report.json"), result.ReportPath)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	var decoded models.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Process, decoded.Process)
	assert.Len(t, decoded.IssuesFound, len(report.IssuesFound))
}

func TestReviewDocuments_CitationErrorDegradesToNull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeTestDOCX(t, path, "Governed by the Dubai Courts.", "No closing.")

	provider := &fakeCitationProvider{err: errors.New("index offline")}
	svc := NewReviewService(ReviewWithCitations(provider))

	result, err := svc.ReviewDocuments(context.Background(), ReviewRequest{
		Paths:     []string{path},
		OutputDir: filepath.Join(dir, "out"),
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Report.IssuesFound)
	for _, issue := range result.Report.IssuesFound {
		assert.Nil(t, issue.Citation)
	}
}

func TestReviewDocuments_NoCitationProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeTestDOCX(t, path, "Governed by the Dubai Courts.", "No closing.")

	svc := NewReviewService()
	result, err := svc.ReviewDocuments(context.Background(), ReviewRequest{
		Paths:     []string{path},
		OutputDir: filepath.Join(dir, "out"),
	})
	require.NoError(t, err)

	for _, issue := range result.Report.IssuesFound {
		assert.Nil(t, issue.Citation)
	}
}

func TestReviewSingle_MovesAnnotatedCopy(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "contract.docx")
	output := filepath.Join(dir, "contract_reviewed.docx")
	writeTestDOCX(t, input, "Agreement text referencing the Dubai Courts.", "The end.")

	svc := NewReviewService()
	report, err := svc.ReviewSingle(context.Background(), input, output)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.FileExists(t, output)
}

func TestMarshalReportJSON(t *testing.T) {
	report := &models.Report{
		Process:           models.ProcessCompanyIncorporation,
		DocumentsUploaded: 1,
		RequiredDocuments: 5,
		MissingDocument:   []string{"Memorandum of Association"},
		IssuesFound: []models.Issue{{
			Description: `Ambiguous language detected: "as appropriate"`,
			Severity:    models.SeverityLow,
		}},
	}

	out, err := MarshalReportJSON(report)
	require.NoError(t, err)

	assert.Contains(t, out, `"process": "Company Incorporation"`)
	assert.Contains(t, out, `"missing_document": [`)
	// HTML escaping is off: quotes inside legal text stay readable
	assert.Contains(t, out, `\"as appropriate\"`)
	assert.NotContains(t, out, `&`)
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestMarshalReportJSON_NoMissingDocuments(t *testing.T) {
	out, err := MarshalReportJSON(&models.Report{Process: models.ProcessUnknown})
	require.NoError(t, err)
	assert.Contains(t, out, `"missing_document": null`)
}

func TestInitializeReviewSteps(t *testing.T) {
	steps := initializeReviewSteps([]string{
		"ab/9f1c2d00-1111-2222-3333-444455556666_articles.docx",
		"cd/9f1c2d00-aaaa-bbbb-cccc-ddddeeeeffff_memo.docx",
	})

	require.Len(t, steps, 4)
	assert.Equal(t, "Reviewing articles.docx", steps[0].Name)
	assert.Equal(t, "Reviewing memo.docx", steps[1].Name)
	assert.Equal(t, "Annotating Documents", steps[2].Name)
	assert.Equal(t, "Consolidating Report", steps[3].Name)
	for _, s := range steps {
		assert.Equal(t, "pending", s.Status)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "articles.docx", displayName("ab/9f1c2d00-1111-2222-3333-444455556666_articles.docx"))
	assert.Equal(t, "plain.docx", displayName("plain.docx"))
	assert.Equal(t, "name_with_underscores.docx", displayName("ab/id_name_with_underscores.docx"))
}

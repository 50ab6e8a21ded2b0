package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgm-review-backend/docx"
	"adgm-review-backend/models"
)

// writeTestDOCX writes a minimal DOCX with one paragraph per line of text
func writeTestDOCX(t *testing.T, path string, paragraphs ...string) {
	t.Helper()

	body := new(bytes.Buffer)
	for _, p := range paragraphs {
		fmt.Fprintf(body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>\n", p)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	rels, err := w.Create("word/_rels/document.xml.rels")
	require.NoError(t, err)
	rels.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`))

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	fmt.Fprintf(doc, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
%s</w:body>
</w:document>`, body.String())

	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestAnnotate_InsertsCommentsAtAnchors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "contract.docx")
	output := filepath.Join(dir, "reviewed_contract.docx")

	writeTestDOCX(t, input,
		"ARTICLES OF ASSOCIATION",
		"Disputes go to the jurisdiction of the Dubai Courts.",
		"Signature block follows.",
	)

	issues := []models.Issue{
		{
			Description: "Jurisdiction clause present but does not specify ADGM Courts",
			Severity:    models.SeverityHigh,
			Suggestion:  "Specify ADGM Courts as the governing jurisdiction",
		},
	}

	annotator := NewAnnotator()
	require.NoError(t, annotator.Annotate(input, output, issues))

	reviewed, err := docx.Open(output)
	require.NoError(t, err)

	comments := reviewed.ListComments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Reviewer", comments[0].Author)
	assert.Contains(t, comments[0].Text, "does not specify ADGM Courts")
	assert.Contains(t, comments[0].Text, "Suggestion: Specify ADGM Courts")
}

func TestAnnotate_FallsBackToLastParagraph(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notice.docx")
	output := filepath.Join(dir, "reviewed_notice.docx")

	writeTestDOCX(t, input, "First line.", "Second line.")

	issues := []models.Issue{{Description: "xq zz ab", Severity: models.SeverityLow}}

	require.NoError(t, NewAnnotator().Annotate(input, output, issues))

	// verify via the anchor in document.xml that the last paragraph carries
	// the comment reference
	reviewed, err := docx.Open(output)
	require.NoError(t, err)
	require.Len(t, reviewed.ListComments(), 1)
}

func TestAnnotate_CustomAuthor(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.docx")
	output := filepath.Join(dir, "out.docx")

	writeTestDOCX(t, input, "Some paragraph text here.")

	annotator := NewAnnotator(AnnotatorWithAuthor("Corporate Agent", "CA"))
	require.NoError(t, annotator.Annotate(input, output, []models.Issue{
		{Description: "paragraph needs review", Severity: models.SeverityMedium},
	}))

	reviewed, err := docx.Open(output)
	require.NoError(t, err)
	comments := reviewed.ListComments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Corporate Agent", comments[0].Author)
}

func TestAnnotate_MissingInput(t *testing.T) {
	dir := t.TempDir()
	err := NewAnnotator().Annotate(filepath.Join(dir, "absent.docx"), filepath.Join(dir, "out.docx"), nil)
	assert.Error(t, err)
}

func TestCommentBody(t *testing.T) {
	plain := models.Issue{Description: "Missing signature block"}
	assert.Equal(t, "Missing signature block", commentBody(plain))

	withSuggestion := models.Issue{
		Description: "Missing signature block",
		Suggestion:  "Add an execution clause",
	}
	assert.Equal(t, "Missing signature block\nSuggestion: Add an execution clause", commentBody(withSuggestion))

	withCitation := models.Issue{
		Description: "References UAE Federal Courts instead of ADGM Courts",
		Suggestion:  `Replace with "ADGM Courts" for proper jurisdiction`,
		Citation: &models.Citation{
			Summary: models.CitationSummary{
				Citation: "ADGM Courts Regulations, page 3",
				Excerpt:  "the ADGM Courts have exclusive jurisdiction",
			},
		},
	}
	body := commentBody(withCitation)
	assert.Contains(t, body, "\nSuggestion: Replace with")
	assert.Contains(t, body, "\nCitation: ADGM Courts Regulations, page 3")
	assert.Contains(t, body, "\nExcerpt: the ADGM Courts have exclusive jurisdiction")

	// citation without an excerpt omits the excerpt line
	withCitation.Citation.Summary.Excerpt = ""
	assert.NotContains(t, commentBody(withCitation), "Excerpt:")
}

func TestAnchorKeywords(t *testing.T) {
	kws := anchorKeywords("Missing 25% ownership threshold reference in the UBO declaration form")
	// short words are skipped, at most six keywords are kept
	assert.Equal(t, []string{"missing", "ownership", "threshold", "reference", "declaration", "form"}, kws)

	assert.Empty(t, anchorKeywords("a an of"))
}

func TestFindAnchorParagraph(t *testing.T) {
	paragraphs := []docx.Paragraph{
		{Index: 0, Text: "ARTICLES OF ASSOCIATION"},
		{Index: 1, Text: ""},
		{Index: 2, Text: "The jurisdiction clause names the Dubai Courts."},
		{Index: 3, Text: "Signature block."},
	}

	assert.Equal(t, 2, findAnchorParagraph(paragraphs, "Jurisdiction clause present but does not specify ADGM Courts"))
	assert.Equal(t, 3, findAnchorParagraph(paragraphs, "nothing matches anywhere"))
}

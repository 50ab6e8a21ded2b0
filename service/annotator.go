package service

import (
	"fmt"
	"strings"

	"adgm-review-backend/docx"
	"adgm-review-backend/models"
)

const (
	defaultCommentAuthor   = "Reviewer"
	defaultCommentInitials = "RV"

	// anchor matching considers the first few substantial words of an issue
	maxAnchorKeywords = 6
	minKeywordLength  = 4
)

// Annotator writes review issues into DOCX documents as native Word
// comments. Each issue is anchored to the first paragraph mentioning any of
// its keywords, falling back to the last paragraph.
type Annotator struct {
	author   string
	initials string
}

// AnnotatorOption is a functional option for Annotator
type AnnotatorOption func(*Annotator)

// AnnotatorWithAuthor overrides the comment author and initials
func AnnotatorWithAuthor(author, initials string) AnnotatorOption {
	return func(a *Annotator) {
		a.author = author
		a.initials = initials
	}
}

// NewAnnotator creates a new annotator
func NewAnnotator(opts ...AnnotatorOption) *Annotator {
	a := &Annotator{
		author:   defaultCommentAuthor,
		initials: defaultCommentInitials,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Annotate opens the input document, inserts one comment per issue, and
// saves the annotated copy to outputPath. The document body text is never
// modified.
func (a *Annotator) Annotate(inputPath, outputPath string, issues []models.Issue) error {
	doc, err := docx.Open(inputPath)
	if err != nil {
		return err
	}
	if err := a.AnnotateDocument(doc, issues); err != nil {
		return err
	}
	return doc.Save(outputPath)
}

// AnnotateDocument inserts one comment per issue into an opened document
func (a *Annotator) AnnotateDocument(doc *docx.Document, issues []models.Issue) error {
	paragraphs := doc.Paragraphs()
	if len(paragraphs) == 0 {
		return fmt.Errorf("document has no paragraphs to anchor comments to")
	}

	for _, issue := range issues {
		anchor := findAnchorParagraph(paragraphs, issue.Description)
		if _, err := doc.InsertComment(anchor, commentBody(issue), a.author, a.initials); err != nil {
			return err
		}
	}
	return nil
}

// commentBody renders an issue as the multi-line comment text
func commentBody(issue models.Issue) string {
	var body strings.Builder
	body.WriteString(issue.Description)
	if issue.Suggestion != "" {
		body.WriteString("\nSuggestion: ")
		body.WriteString(issue.Suggestion)
	}
	if issue.Citation != nil {
		body.WriteString("\nCitation: ")
		body.WriteString(issue.Citation.Summary.Citation)
		if issue.Citation.Summary.Excerpt != "" {
			body.WriteString("\nExcerpt: ")
			body.WriteString(issue.Citation.Summary.Excerpt)
		}
	}
	return body.String()
}

// findAnchorParagraph picks the first paragraph containing any keyword of
// the issue description, or the last paragraph when nothing matches
func findAnchorParagraph(paragraphs []docx.Paragraph, description string) int {
	keywords := anchorKeywords(description)
	for _, p := range paragraphs {
		if p.Text == "" {
			continue
		}
		textLower := strings.ToLower(p.Text)
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) {
				return p.Index
			}
		}
	}
	return paragraphs[len(paragraphs)-1].Index
}

func anchorKeywords(description string) []string {
	var keywords []string
	for _, word := range strings.Fields(description) {
		if len(word) >= minKeywordLength {
			keywords = append(keywords, strings.ToLower(word))
		}
		if len(keywords) == maxAnchorKeywords {
			break
		}
	}
	return keywords
}

package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	commentsPartName     = "word/comments.xml"
	contentTypesPartName = "[Content_Types].xml"
	documentRelsPartName = "word/_rels/document.xml.rels"
)

const (
	commentsContentType  = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
	commentsRelationType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
)

const emptyCommentsPart = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n" +
	`<w:comments xmlns:w="` + wordNS + `"></w:comments>`

const emptyRelsPart = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n" +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

type commentsXML struct {
	Comments []struct {
		ID     string `xml:"http://schemas.openxmlformats.org/wordprocessingml/2006/main id,attr"`
		Author string `xml:"http://schemas.openxmlformats.org/wordprocessingml/2006/main author,attr"`
		Paras  []struct {
			Runs []struct {
				Texts []string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"comment"`
}

// parseComments extracts the id, author and flattened text of every comment
// in an existing comments part. A nil part yields no comments.
func parseComments(data []byte) ([]Comment, error) {
	if data == nil {
		return nil, nil
	}
	var parsed commentsXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	var comments []Comment
	for _, c := range parsed.Comments {
		id, err := strconv.Atoi(c.ID)
		if err != nil {
			continue
		}
		var text strings.Builder
		for _, p := range c.Paras {
			for _, r := range p.Runs {
				for _, t := range r.Texts {
					text.WriteString(t)
				}
			}
		}
		comments = append(comments, Comment{ID: id, Author: c.Author, Text: text.String()})
	}
	return comments, nil
}

// buildCommentsPart appends the pending comments to the existing comments
// part, creating the part when the document has none. The second return value
// reports whether a new part (and thus content-type and relationship entries)
// is needed.
func buildCommentsPart(existing []byte, pending []pendingComment) ([]byte, bool, error) {
	if len(pending) == 0 {
		return existing, false, nil
	}

	created := existing == nil
	base := existing
	if created {
		base = []byte(emptyCommentsPart)
	}

	closeIdx := bytes.LastIndex(base, []byte("</"))
	if closeIdx < 0 {
		return nil, false, fmt.Errorf("comments part has no closing root tag")
	}

	var additions bytes.Buffer
	stamp := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	for _, p := range pending {
		fmt.Fprintf(&additions,
			`<w:comment w:id="%d" w:author="%s" w:initials="%s" w:date="%s">`,
			p.id, xmlEscape(p.author), xmlEscape(p.initials), stamp)
		additions.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		additions.WriteString(xmlEscape(p.text))
		additions.WriteString(`</w:t></w:r></w:p></w:comment>`)
	}

	var out bytes.Buffer
	out.Write(base[:closeIdx])
	out.Write(additions.Bytes())
	out.Write(base[closeIdx:])
	return out.Bytes(), created, nil
}

// ensureCommentsContentType registers the comments part in [Content_Types].xml
// unless an override for it already exists
func ensureCommentsContentType(data []byte) []byte {
	if bytes.Contains(data, []byte(`PartName="/word/comments.xml"`)) {
		return data
	}
	override := fmt.Sprintf(`<Override PartName="/word/comments.xml" ContentType="%s"/>`, commentsContentType)
	closeIdx := bytes.LastIndex(data, []byte("</Types>"))
	if closeIdx < 0 {
		return data
	}
	var out bytes.Buffer
	out.Write(data[:closeIdx])
	out.WriteString(override)
	out.Write(data[closeIdx:])
	return out.Bytes()
}

var relIDPattern = regexp.MustCompile(`Id="rId(\d+)"`)

// ensureCommentsRelationship adds a comments relationship to the main document
// relationships part, allocating the next free rId. A nil part is created from
// scratch.
func ensureCommentsRelationship(data []byte) []byte {
	if data == nil {
		data = []byte(emptyRelsPart)
	}
	if bytes.Contains(data, []byte(commentsRelationType)) {
		return data
	}

	maxID := 0
	for _, m := range relIDPattern.FindAllSubmatch(data, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > maxID {
			maxID = n
		}
	}
	rel := fmt.Sprintf(`<Relationship Id="rId%d" Type="%s" Target="comments.xml"/>`, maxID+1, commentsRelationType)

	closeIdx := bytes.LastIndex(data, []byte("</Relationships>"))
	if closeIdx < 0 {
		return data
	}
	var out bytes.Buffer
	out.Write(data[:closeIdx])
	out.WriteString(rel)
	out.Write(data[closeIdx:])
	return out.Bytes()
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

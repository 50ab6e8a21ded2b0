package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const documentPartName = "word/document.xml"

// Paragraph is one paragraph of the document, in document order
type Paragraph struct {
	Index int
	Text  string
}

// paragraphSpan records where a w:p element lives inside word/document.xml so
// comment anchors can be spliced in without touching any other byte.
type paragraphSpan struct {
	afterOpen   int // offset just past the opening tag
	closeStart  int // offset of the '<' of the closing tag (tag start when self-closing)
	selfClosing bool
	text        string
}

type zipEntry struct {
	name string
	data []byte
}

type pendingComment struct {
	id        int
	paragraph int
	author    string
	initials  string
	text      string
}

// Document is an opened DOCX container. Comment insertions are buffered and
// applied at serialization time; the original paragraph text and ordering are
// never modified.
type Document struct {
	entries    []zipEntry
	docXML     []byte
	spans      []paragraphSpan
	baseNextID int
	pending    []pendingComment
}

// Open reads a DOCX file from disk
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return OpenBytes(data)
}

// OpenBytes reads a DOCX container from memory
func OpenBytes(data []byte) (*Document, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid docx container: %w", err)
	}

	doc := &Document{}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", file.Name, err)
		}
		doc.entries = append(doc.entries, zipEntry{name: file.Name, data: content})
	}

	doc.docXML = doc.part(documentPartName)
	if doc.docXML == nil {
		return nil, fmt.Errorf("docx container has no %s part", documentPartName)
	}

	spans, err := parseParagraphSpans(doc.docXML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document body: %w", err)
	}
	doc.spans = spans

	existing, err := parseComments(doc.part(commentsPartName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse comments part: %w", err)
	}
	doc.baseNextID = 0
	for _, c := range existing {
		if c.ID >= doc.baseNextID {
			doc.baseNextID = c.ID + 1
		}
	}

	return doc, nil
}

func (d *Document) part(name string) []byte {
	for _, e := range d.entries {
		if e.name == name {
			return e.data
		}
	}
	return nil
}

// Paragraphs returns the ordered paragraph records of the document
func (d *Document) Paragraphs() []Paragraph {
	paras := make([]Paragraph, len(d.spans))
	for i, s := range d.spans {
		paras[i] = Paragraph{Index: i, Text: s.text}
	}
	return paras
}

// Text returns the non-empty paragraph texts joined by newlines, the same
// view of the document the classifier and rule checks operate on
func (d *Document) Text() string {
	var buf bytes.Buffer
	for _, s := range d.spans {
		if s.text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(s.text)
	}
	return buf.String()
}

// Comment is a review comment attached to the document
type Comment struct {
	ID     int
	Author string
	Text   string
}

// ListComments returns existing comments plus any buffered insertions
func (d *Document) ListComments() []Comment {
	comments, _ := parseComments(d.part(commentsPartName))
	for _, p := range d.pending {
		comments = append(comments, Comment{ID: p.id, Author: p.author, Text: p.text})
	}
	return comments
}

// NextCommentID returns the id the next inserted comment will receive.
// Ids are strictly increasing: one past the current maximum, starting at 0.
func (d *Document) NextCommentID() int {
	return d.baseNextID + len(d.pending)
}

// InsertComment attaches a comment spanning the given paragraph, with a
// trailing reference marker. Returns the allocated comment id.
func (d *Document) InsertComment(paragraphIndex int, body, author, initials string) (int, error) {
	if paragraphIndex < 0 || paragraphIndex >= len(d.spans) {
		return 0, fmt.Errorf("paragraph index %d out of range (document has %d paragraphs)", paragraphIndex, len(d.spans))
	}
	id := d.NextCommentID()
	d.pending = append(d.pending, pendingComment{
		id:        id,
		paragraph: paragraphIndex,
		author:    author,
		initials:  initials,
		text:      body,
	})
	return id, nil
}

// Bytes serializes the document, splicing in any buffered comments
func (d *Document) Bytes() ([]byte, error) {
	newDocXML := d.spliceAnchors()

	commentsData, created, err := buildCommentsPart(d.part(commentsPartName), d.pending)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	wroteComments := false
	wroteRels := false
	for _, e := range d.entries {
		data := e.data
		switch e.name {
		case documentPartName:
			data = newDocXML
		case commentsPartName:
			data = commentsData
			wroteComments = true
		case contentTypesPartName:
			if created {
				data = ensureCommentsContentType(data)
			}
		case documentRelsPartName:
			if created {
				data = ensureCommentsRelationship(data)
			}
			wroteRels = true
		}
		f, err := w.Create(e.name)
		if err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", e.name, err)
		}
		if _, err := f.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", e.name, err)
		}
	}

	if created && commentsData != nil && !wroteComments {
		f, err := w.Create(commentsPartName)
		if err != nil {
			return nil, fmt.Errorf("failed to create comments part: %w", err)
		}
		if _, err := f.Write(commentsData); err != nil {
			return nil, fmt.Errorf("failed to write comments part: %w", err)
		}
	}
	if created && !wroteRels {
		f, err := w.Create(documentRelsPartName)
		if err != nil {
			return nil, fmt.Errorf("failed to create relationships part: %w", err)
		}
		if _, err := f.Write(ensureCommentsRelationship(nil)); err != nil {
			return nil, fmt.Errorf("failed to write relationships part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx container: %w", err)
	}
	return buf.Bytes(), nil
}

// Save serializes the document to disk
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// spliceAnchors rebuilds word/document.xml with commentRangeStart/End markers
// and reference runs around each anchored paragraph. Every byte outside the
// insertion points is carried over unchanged.
func (d *Document) spliceAnchors() []byte {
	if len(d.pending) == 0 {
		return d.docXML
	}

	byPara := make(map[int][]int)
	for _, p := range d.pending {
		byPara[p.paragraph] = append(byPara[p.paragraph], p.id)
	}

	raw := d.docXML
	var out bytes.Buffer
	cursor := 0
	for i, span := range d.spans {
		ids := byPara[i]
		if len(ids) == 0 {
			continue
		}
		var starts, ends bytes.Buffer
		for _, id := range ids {
			fmt.Fprintf(&starts, `<w:commentRangeStart w:id="%d"/>`, id)
			fmt.Fprintf(&ends, `<w:commentRangeEnd w:id="%d"/><w:r><w:commentReference w:id="%d"/></w:r>`, id, id)
		}

		if span.selfClosing {
			// expand <w:p .../> into an open/close pair holding the markers
			tag := raw[span.closeStart:span.afterOpen]
			open := bytes.Replace(tag, []byte("/>"), []byte(">"), 1)
			out.Write(raw[cursor:span.closeStart])
			out.Write(open)
			out.Write(starts.Bytes())
			out.Write(ends.Bytes())
			out.WriteString("</w:p>")
			cursor = span.afterOpen
			continue
		}

		content := raw[span.afterOpen:span.closeStart]
		// commentRangeStart goes after the paragraph properties when present
		propEnd := paragraphPropertiesEnd(content)
		out.Write(raw[cursor:span.afterOpen])
		out.Write(content[:propEnd])
		out.Write(starts.Bytes())
		out.Write(content[propEnd:])
		out.Write(ends.Bytes())
		cursor = span.closeStart
	}
	out.Write(raw[cursor:])
	return out.Bytes()
}

func paragraphPropertiesEnd(content []byte) int {
	if !bytes.HasPrefix(content, []byte("<w:pPr")) {
		return 0
	}
	if i := bytes.Index(content, []byte("</w:pPr>")); i >= 0 {
		return i + len("</w:pPr>")
	}
	gt := bytes.IndexByte(content, '>')
	if gt > 0 && content[gt-1] == '/' {
		return gt + 1
	}
	return 0
}

// parseParagraphSpans walks word/document.xml and records the byte extents
// and visible text of every w:p element
func parseParagraphSpans(raw []byte) ([]paragraphSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var spans []paragraphSpan
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Space != wordNS || se.Name.Local != "p" {
			continue
		}

		afterOpen := int(dec.InputOffset())
		var text bytes.Buffer
		depth := 1
		inText := 0
		afterEnd := afterOpen
		for depth > 0 {
			inner, err := dec.Token()
			if err != nil {
				return nil, err
			}
			switch el := inner.(type) {
			case xml.StartElement:
				depth++
				if el.Name.Space == wordNS && el.Name.Local == "t" {
					inText++
				}
			case xml.EndElement:
				depth--
				if el.Name.Space == wordNS && el.Name.Local == "t" && inText > 0 {
					inText--
				}
				if depth == 0 {
					afterEnd = int(dec.InputOffset())
				}
			case xml.CharData:
				if inText > 0 {
					text.Write(el)
				}
			}
		}

		closeStart := bytes.LastIndexByte(raw[:afterEnd], '<')
		spans = append(spans, paragraphSpan{
			afterOpen:   afterOpen,
			closeStart:  closeStart,
			selfClosing: closeStart < afterOpen,
			text:        text.String(),
		})
	}
	return spans, nil
}

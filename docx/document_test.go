package docx

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(documentXML string, extraParts map[string]string) []byte {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, _ := w.Create("[Content_Types].xml")
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	rels, _ := w.Create("word/_rels/document.xml.rels")
	rels.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`))

	doc, _ := w.Create("word/document.xml")
	doc.Write([]byte(documentXML))

	for name, data := range extraParts {
		f, _ := w.Create(name)
		f.Write([]byte(data))
	}

	w.Close()
	return buf.Bytes()
}

const simpleDocXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>ARTICLES OF ASSOCIATION</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">This company is governed by </w:t></w:r><w:r><w:t>UAE Federal Courts</w:t></w:r></w:p>
<w:p/>
<w:p><w:r><w:t>Signature block follows.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestOpenBytes_Paragraphs(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	paras := doc.Paragraphs()
	require.Len(t, paras, 4)
	assert.Equal(t, "ARTICLES OF ASSOCIATION", paras[0].Text)
	assert.Equal(t, "This company is governed by UAE Federal Courts", paras[1].Text)
	assert.Equal(t, "", paras[2].Text)
	assert.Equal(t, "Signature block follows.", paras[3].Text)
}

func TestText_SkipsEmptyParagraphs(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	text := doc.Text()
	assert.Equal(t, 3, len(strings.Split(text, "\n")))
	assert.Contains(t, text, "UAE Federal Courts")
}

func TestOpenBytes_NotAZip(t *testing.T) {
	_, err := OpenBytes([]byte("plain text, not a container"))
	assert.Error(t, err)
}

func TestOpenBytes_MissingDocumentPart(t *testing.T) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	f, _ := w.Create("word/styles.xml")
	f.Write([]byte("<styles/>"))
	w.Close()

	_, err := OpenBytes(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestInsertComment_IDsStrictlyIncreasing(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	assert.Equal(t, 0, doc.NextCommentID())

	id0, err := doc.InsertComment(1, "Jurisdiction clause does not specify ADGM", "Corporate Agent", "CA")
	require.NoError(t, err)
	id1, err := doc.InsertComment(3, "Signature section lacks a signatory name", "Corporate Agent", "CA")
	require.NoError(t, err)

	assert.Equal(t, 0, id0)
	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, doc.NextCommentID())
}

func TestInsertComment_ContinuesFromExistingIDs(t *testing.T) {
	existingComments := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:comments xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:comment w:id="4" w:author="Earlier Reviewer"><w:p><w:r><w:t>prior note</w:t></w:r></w:p></w:comment></w:comments>`

	doc, err := OpenBytes(createTestDOCX(simpleDocXML, map[string]string{
		"word/comments.xml": existingComments,
	}))
	require.NoError(t, err)

	assert.Equal(t, 5, doc.NextCommentID())

	id, err := doc.InsertComment(0, "new note", "Corporate Agent", "CA")
	require.NoError(t, err)
	assert.Equal(t, 5, id)

	comments := doc.ListComments()
	require.Len(t, comments, 2)
	assert.Equal(t, 4, comments[0].ID)
	assert.Equal(t, "prior note", comments[0].Text)
	assert.Equal(t, 5, comments[1].ID)
}

func TestInsertComment_OutOfRange(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	_, err = doc.InsertComment(99, "body", "a", "A")
	assert.Error(t, err)
	_, err = doc.InsertComment(-1, "body", "a", "A")
	assert.Error(t, err)
}

func TestBytes_PreservesParagraphText(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	_, err = doc.InsertComment(1, "Jurisdiction clause does not specify ADGM", "Corporate Agent", "CA")
	require.NoError(t, err)
	_, err = doc.InsertComment(2, "anchored on the empty paragraph", "Corporate Agent", "CA")
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)

	reopened, err := OpenBytes(data)
	require.NoError(t, err)

	paras := reopened.Paragraphs()
	require.Len(t, paras, 4)
	assert.Equal(t, "ARTICLES OF ASSOCIATION", paras[0].Text)
	assert.Equal(t, "This company is governed by UAE Federal Courts", paras[1].Text)
	assert.Equal(t, "", paras[2].Text)
	assert.Equal(t, "Signature block follows.", paras[3].Text)

	comments := reopened.ListComments()
	require.Len(t, comments, 2)
	assert.Equal(t, 0, comments[0].ID)
	assert.Equal(t, "Jurisdiction clause does not specify ADGM", comments[0].Text)
	assert.Equal(t, "Corporate Agent", comments[0].Author)
	assert.Equal(t, 1, comments[1].ID)
}

func TestBytes_AnchorsInDocumentXML(t *testing.T) {
	doc, err := OpenBytes(createTestDOCX(simpleDocXML, nil))
	require.NoError(t, err)

	_, err = doc.InsertComment(0, "heading comment", "Corporate Agent", "CA")
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var docXML, contentTypes, rels string
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content := new(bytes.Buffer)
		_, err = content.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		switch f.Name {
		case "word/document.xml":
			docXML = content.String()
		case "[Content_Types].xml":
			contentTypes = content.String()
		case "word/_rels/document.xml.rels":
			rels = content.String()
		}
	}

	assert.Contains(t, docXML, `<w:commentRangeStart w:id="0"/>`)
	assert.Contains(t, docXML, `<w:commentRangeEnd w:id="0"/>`)
	assert.Contains(t, docXML, `<w:commentReference w:id="0"/>`)
	// range start must come after the paragraph properties
	assert.Less(t, strings.Index(docXML, "</w:pPr>"), strings.Index(docXML, `<w:commentRangeStart w:id="0"/>`))

	assert.Contains(t, contentTypes, `PartName="/word/comments.xml"`)
	assert.Contains(t, rels, "relationships/comments")
	assert.Contains(t, rels, `Id="rId2"`)
}

func TestBytes_NoPendingCommentsIsPassthrough(t *testing.T) {
	original := createTestDOCX(simpleDocXML, nil)
	doc, err := OpenBytes(original)
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)

	reopened, err := OpenBytes(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Text(), reopened.Text())
	assert.Empty(t, reopened.ListComments())
}

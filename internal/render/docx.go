package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// DOCX layout constants. Word measures font sizes in half-points, table
// widths in fiftieths of a percent, row heights in twips and images in EMU.
const (
	docxTitleSize  = 34 // 17pt
	docxHeaderSize = 28 // 14pt
	docxBodySize   = 24 // 12pt

	docxHeaderRowHeight = 600
	docxDataRowHeight   = 1200

	emusPerPixel   = 9525
	docxLogoWidth  = 500 * emusPerPixel
	docxLogoHeight = 125 * emusPerPixel
	docxQRSize     = 80 * emusPerPixel

	fontArial = "Arial"
	fontTimes = "Times New Roman"
)

// Column widths in fiftieths of a percent (10/15/40/15/10/10 of 100%).
var docxColWidths = [6]int{500, 750, 2000, 750, 500, 500}

// Matching grid columns in twips for a letter page with 0.5" margins.
var docxGridCols = [6]int{1080, 1620, 4320, 1620, 1080, 1080}

// DOCX renders the table of contents sheet as a Word document. The OOXML
// package is assembled directly: a zip with the wordprocessingml document
// part, relationship parts and embedded media.
func DOCX(in Input) ([]byte, error) {
	b := &docxBuilder{}

	var body strings.Builder

	// College logo, centered. Blank when absent or undecodable.
	logoRun := ""
	if relID, drawingID, ok := b.addImage(in.Logo); ok {
		logoRun = imageRun(relID, drawingID, docxLogoWidth, docxLogoHeight)
	}
	body.WriteString(paragraph(`<w:jc w:val="center"/><w:spacing w:after="300"/>`, logoRun))

	body.WriteString(paragraph(`<w:jc w:val="center"/><w:spacing w:after="200"/>`,
		textRun("Table of Contents", fontArial, docxTitleSize, "")))
	body.WriteString(paragraph(`<w:jc w:val="center"/><w:spacing w:after="400"/>`,
		textRun(in.CourseTitle, fontArial, docxTitleSize, "")))

	body.WriteString(b.experimentsTable(in))

	body.WriteString(paragraph(`<w:jc w:val="center"/><w:spacing w:before="600" w:after="400"/>`,
		textRun(confirmationText, fontTimes, docxBodySize, "")))

	body.WriteString(detailsTable(in.StudentName, in.RegisterNumber))

	// Letter page, 0.5 inch margins all around.
	body.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="720" w:right="720" w:bottom="720" w:left="720" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">` +
		`<w:body>` + body.String() + `</w:body></w:document>`

	return b.pack(document)
}

// experimentsTable builds the six-column table with one row per experiment.
func (b *docxBuilder) experimentsTable(in Input) string {
	var t strings.Builder

	t.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>`)
	t.WriteString(`<w:tblBorders>` +
		borderEdge("top", 8) + borderEdge("bottom", 8) + borderEdge("left", 8) + borderEdge("right", 8) +
		borderEdge("insideH", 6) + borderEdge("insideV", 6) +
		`</w:tblBorders></w:tblPr>`)

	t.WriteString(`<w:tblGrid>`)
	for _, w := range docxGridCols {
		fmt.Fprintf(&t, `<w:gridCol w:w="%d"/>`, w)
	}
	t.WriteString(`</w:tblGrid>`)

	// Header row with the heavier border weight.
	t.WriteString(fmt.Sprintf(`<w:tr><w:trPr><w:trHeight w:val="%d" w:hRule="atLeast"/><w:tblHeader/></w:trPr>`, docxHeaderRowHeight))
	for i, header := range tableHeaders {
		t.WriteString(tableCell(docxColWidths[i], 8,
			paragraph(`<w:jc w:val="center"/>`, textRun(header, fontArial, docxHeaderSize, ""))))
	}
	t.WriteString(`</w:tr>`)

	for i, experiment := range in.Experiments {
		t.WriteString(fmt.Sprintf(`<w:tr><w:trPr><w:trHeight w:val="%d" w:hRule="atLeast"/></w:trPr>`, docxDataRowHeight))

		t.WriteString(tableCell(docxColWidths[0], 6,
			paragraph(`<w:jc w:val="center"/>`, textRun(fmt.Sprintf("%d", i+1), fontTimes, docxBodySize, ""))))
		t.WriteString(tableCell(docxColWidths[1], 6,
			paragraph(`<w:jc w:val="center"/>`, textRun(formatDate(experiment.Date), fontTimes, docxBodySize, ""))))

		// Title paragraph followed by the repository link in blue.
		t.WriteString(tableCell(docxColWidths[2], 6,
			paragraph(`<w:jc w:val="left"/><w:spacing w:after="100"/>`, textRun(experiment.Title, fontTimes, docxBodySize, ""))+
				paragraph(`<w:jc w:val="left"/>`, textRun(experiment.GithubLink, fontTimes, docxBodySize, "0000FF"))))

		qrContent := ""
		if relID, drawingID, ok := b.addImage(in.QRCodes[experiment.ID]); ok {
			qrContent = imageRun(relID, drawingID, docxQRSize, docxQRSize)
		}
		t.WriteString(tableCell(docxColWidths[3], 6, paragraph(`<w:jc w:val="center"/>`, qrContent)))

		// Marks and Signature stay empty for the evaluator.
		t.WriteString(tableCell(docxColWidths[4], 6, paragraph(`<w:jc w:val="center"/>`, "")))
		t.WriteString(tableCell(docxColWidths[5], 6, paragraph(`<w:jc w:val="center"/>`, "")))

		t.WriteString(`</w:tr>`)
	}

	t.WriteString(`</w:tbl>`)
	return t.String()
}

// detailsTable lays out the Name/Date and Register Number/Signature blocks
// as a borderless two-column table so they align on print.
func detailsTable(studentName, registerNumber string) string {
	left := paragraph(`<w:spacing w:after="200"/>`,
		textRun("Name: ", fontTimes, docxBodySize, "")+textRun(studentName, fontTimes, docxBodySize, "")) +
		paragraph("", textRun("Date: ", fontTimes, docxBodySize, ""))
	right := paragraph(`<w:spacing w:after="200"/>`,
		textRun("Register Number: ", fontTimes, docxBodySize, "")+textRun(registerNumber, fontTimes, docxBodySize, "")) +
		paragraph("", textRun("Learner Signature: ", fontTimes, docxBodySize, ""))

	noBorders := `<w:tcBorders>` +
		noBorderEdge("top") + noBorderEdge("bottom") + noBorderEdge("left") + noBorderEdge("right") +
		`</w:tcBorders>`

	cell := func(content string) string {
		return `<w:tc><w:tcPr><w:tcW w:w="2500" w:type="pct"/>` + noBorders + `</w:tcPr>` + content + `</w:tc>`
	}

	return `<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/><w:tblBorders>` +
		noBorderEdge("top") + noBorderEdge("bottom") + noBorderEdge("left") + noBorderEdge("right") +
		noBorderEdge("insideH") + noBorderEdge("insideV") +
		`</w:tblBorders></w:tblPr>` +
		`<w:tblGrid><w:gridCol w:w="5400"/><w:gridCol w:w="5400"/></w:tblGrid>` +
		`<w:tr>` + cell(left) + cell(right) + `</w:tr></w:tbl>`
}

// docxBuilder accumulates embedded media while the document part is built.
type docxBuilder struct {
	media []docxMedia
}

type docxMedia struct {
	ext  string
	data []byte
}

// addImage registers image bytes as an embedded media part and returns its
// relationship id together with the drawing object id. Undecodable bytes
// are rejected.
func (b *docxBuilder) addImage(data []byte) (string, int, bool) {
	format, ok := sniffImage(data)
	if !ok {
		return "", 0, false
	}
	ext := "png"
	if format == "jpeg" {
		ext = "jpeg"
	}
	b.media = append(b.media, docxMedia{ext: ext, data: data})
	return fmt.Sprintf("rId%d", len(b.media)), len(b.media), true
}

// pack assembles the zip container around the finished document part.
func (b *docxBuilder) pack(document string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		`<Default Extension="jpeg" ContentType="image/jpeg"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	if err := write("[Content_Types].xml", contentTypes); err != nil {
		return nil, fmt.Errorf("failed to write content types: %w", err)
	}

	rootRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	if err := write("_rels/.rels", rootRels); err != nil {
		return nil, fmt.Errorf("failed to write package relationships: %w", err)
	}

	var docRels strings.Builder
	docRels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, m := range b.media {
		fmt.Fprintf(&docRels,
			`<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image%d.%s"/>`,
			i+1, i+1, m.ext)
	}
	docRels.WriteString(`</Relationships>`)
	if err := write("word/_rels/document.xml.rels", docRels.String()); err != nil {
		return nil, fmt.Errorf("failed to write document relationships: %w", err)
	}

	if err := write("word/document.xml", document); err != nil {
		return nil, fmt.Errorf("failed to write document part: %w", err)
	}

	for i, m := range b.media {
		w, err := zw.Create(fmt.Sprintf("word/media/image%d.%s", i+1, m.ext))
		if err != nil {
			return nil, fmt.Errorf("failed to create media part: %w", err)
		}
		if _, err := w.Write(m.data); err != nil {
			return nil, fmt.Errorf("failed to write media part: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize DOCX package: %w", err)
	}
	return buf.Bytes(), nil
}

// paragraph wraps runs in a w:p, with optional paragraph properties markup.
func paragraph(props, runs string) string {
	if props != "" {
		props = `<w:pPr>` + props + `</w:pPr>`
	}
	return `<w:p>` + props + runs + `</w:p>`
}

// textRun builds a single styled run. size is in half-points; color is an
// RRGGBB hex string or empty for the default.
func textRun(text, font string, size int, color string) string {
	var props strings.Builder
	fmt.Fprintf(&props, `<w:rFonts w:ascii="%s" w:hAnsi="%s"/>`, font, font)
	if color != "" {
		fmt.Fprintf(&props, `<w:color w:val="%s"/>`, color)
	}
	fmt.Fprintf(&props, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, size, size)
	return `<w:r><w:rPr>` + props.String() + `</w:rPr>` +
		`<w:t xml:space="preserve">` + xmlEscape(text) + `</w:t></w:r>`
}

// imageRun builds an inline drawing run referencing an embedded media part.
// cx and cy are in EMU. Drawing object ids are unique per document, keyed
// to the media index like the relationship ids.
func imageRun(relID string, drawingID, cx, cy int) string {
	return fmt.Sprintf(`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="Picture %d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, drawingID, drawingID, drawingID, drawingID, relID, cx, cy)
}

// tableCell wraps content in a w:tc with single black borders of the given
// weight (eighths of a point), white shading and centered vertical alignment.
func tableCell(widthPct, borderSize int, content string) string {
	return fmt.Sprintf(`<w:tc><w:tcPr><w:tcW w:w="%d" w:type="pct"/>`+
		`<w:shd w:val="clear" w:fill="FFFFFF"/>`+
		`<w:tcBorders>%s%s%s%s</w:tcBorders>`+
		`<w:vAlign w:val="center"/></w:tcPr>%s</w:tc>`,
		widthPct,
		borderEdge("top", borderSize), borderEdge("bottom", borderSize),
		borderEdge("left", borderSize), borderEdge("right", borderSize),
		content)
}

func borderEdge(edge string, size int) string {
	return fmt.Sprintf(`<w:%s w:val="single" w:sz="%d" w:color="000000"/>`, edge, size)
}

func noBorderEdge(edge string) string {
	return fmt.Sprintf(`<w:%s w:val="none" w:sz="0" w:space="0" w:color="auto"/>`, edge)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	rpdf "rsc.io/pdf"
)

const maxPDFPages = 10

// extractPDFText pulls text from the first few pages of a PDF. Call
// documents put deadlines on page one, so a page cap loses nothing and
// keeps malformed mega-PDFs cheap. The parser panics on some malformed
// files, so the whole extraction runs under a recover.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic: %v", recovered)
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		var line strings.Builder
		var lastY float64
		for _, t := range content.Text {
			if line.Len() > 0 && t.Y != lastY {
				sb.WriteString(line.String())
				sb.WriteByte('\n')
				line.Reset()
			}
			line.WriteString(t.S)
			lastY = t.Y
		}
		if line.Len() > 0 {
			sb.WriteString(line.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

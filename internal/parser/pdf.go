package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls plain text out of an uploaded PDF. A document the
// library cannot open maps to ErrUnreadableFormat; a scanned or image-only
// PDF surfaces downstream as ErrInsufficientContent from validation.
func ExtractPDFText(data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", ErrUploadTooLarge
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnreadableFormat, err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page doesn't invalidate the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

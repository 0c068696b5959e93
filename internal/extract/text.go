package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// extractText returns the bytes as a string if they are valid UTF-8.
func extractText(data []byte) (string, error) {
	data = trimBOM(data)
	if off := invalidUTF8Offset(data); off >= 0 {
		return "", &EncodingError{Encoding: "utf-8", Offset: off}
	}
	return string(data), nil
}

// extractHTML keeps the visible text of an HTML document, one line per text line.
func extractHTML(data []byte) (string, error) {
	data = trimBOM(data)
	if off := invalidUTF8Offset(data); off >= 0 {
		return "", &EncodingError{Encoding: "utf-8", Offset: off}
	}
	// The HTML parser drops NUL silently; treat it like plain text does.
	if off := bytes.IndexByte(data, 0); off >= 0 {
		return "", &EncodingError{Encoding: "utf-8", Offset: off, NUL: true}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// invalidUTF8Offset returns the offset of the first invalid sequence, or -1.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

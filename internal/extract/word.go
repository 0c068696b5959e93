package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractWord reads word/document.xml out of a DOCX container and returns
// one line per paragraph. Empty paragraphs stay as empty lines.
func extractWord(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx zip: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return parseWordXML(rc)
	}
	return "", errors.New("word/document.xml not found in docx")
}

func parseWordXML(r io.Reader) (string, error) {
	var (
		lines []string
		cur   strings.Builder
		depth int
		runs  int
		inT   bool
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					cur.Reset()
				}
				depth++
			case "r":
				runs++
			case "t":
				inT = depth > 0
			// Outside a run, w:tab is a tab stop definition in w:pPr/w:tabs.
			case "tab":
				if depth > 0 && runs > 0 {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 && runs > 0 {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "r":
				if runs > 0 {
					runs--
				}
			case "t":
				inT = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					lines = append(lines, cur.String())
				}
			}
		case xml.CharData:
			if inT {
				cur.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const cellSep = ", "

// extractCSV decodes a headerless delimited table. Each row becomes its cells
// joined by ", ", rows joined by "\n", original order kept.
func (x *Extractor) extractCSV(data []byte, mediaType string) (string, error) {
	text, err := x.decodeTable(data, mediaType)
	if err != nil {
		return "", err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	var rows []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, strings.Join(rec, cellSep))
	}
	return strings.Join(rows, "\n"), nil
}

// decodeTable detects the byte encoding of data. A byte order mark or a
// charset parameter on mediaType is conclusive, and so is valid UTF-8.
// Anything else is decoded with the configured default encoding.
func (x *Extractor) decodeTable(data []byte, mediaType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(data, mediaType)
	if !certain {
		if utf8.Valid(data) {
			name = "utf-8"
		} else {
			name = x.defaultEncoding
		}
		var err error
		if enc, err = lookupEncoding(name); err != nil {
			return "", err
		}
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return strings.TrimPrefix(string(out), "\ufeff"), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	return enc, nil
}

// extractSheet serializes every worksheet of an XLSX workbook the same way
// extractCSV serializes a table, sheets in workbook order.
func extractSheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var rows []string
	for _, sheet := range f.GetSheetList() {
		sr, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range sr {
			rows = append(rows, strings.Join(row, cellSep))
		}
	}
	return strings.Join(rows, "\n"), nil
}

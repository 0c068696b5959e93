// Package extract derives normalized UTF-8 text from format-specific encodings.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docvault/internal/model"
)

// Result is the output of a successful extraction.
// Structured is only set by the JSON extractor.
type Result struct {
	Text       string
	Structured json.RawMessage
}

// Input carries everything an extractor may look at.
type Input struct {
	Kind      model.ExtractorKind
	Bucket    model.Bucket
	MediaType string
	Data      []byte
}

// ExtractionError is returned for every extractor failure.
type ExtractionError struct {
	Bucket model.Bucket
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Bucket, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// EncodingError reports bytes that are not valid in the expected text encoding,
// or a NUL character, which text columns cannot store.
type EncodingError struct {
	Encoding string
	Offset   int
	NUL      bool
}

func (e *EncodingError) Error() string {
	if e.NUL {
		return fmt.Sprintf("NUL character at offset %d in extracted text", e.Offset)
	}
	return fmt.Sprintf("invalid %s byte sequence at offset %d", e.Encoding, e.Offset)
}

// MalformedPayloadError reports structured data that does not parse.
type MalformedPayloadError struct {
	Cause error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed structured payload: %v", e.Cause)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Cause }

var errNoExtractor = errors.New("no extractor for bucket")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor runs the format decoders. The zero value is not usable; use New.
type Extractor struct {
	defaultEncoding string
}

// New returns an Extractor. defaultEncoding is used by the CSV decoder when
// encoding detection is inconclusive; it must be a WHATWG encoding label.
func New(defaultEncoding string) (*Extractor, error) {
	if defaultEncoding == "" {
		defaultEncoding = "windows-1252"
	}
	if _, err := lookupEncoding(defaultEncoding); err != nil {
		return nil, err
	}
	return &Extractor{defaultEncoding: defaultEncoding}, nil
}

// Extract dispatches on in.Kind. Any failure is an *ExtractionError.
func (x *Extractor) Extract(in Input) (Result, error) {
	var (
		res Result
		err error
	)
	switch in.Kind {
	case model.ExtractorPDF:
		res.Text, err = extractPDF(in.Data)
	case model.ExtractorWord:
		res.Text, err = extractWord(in.Data)
	case model.ExtractorText:
		res.Text, err = extractText(in.Data)
	case model.ExtractorHTML:
		res.Text, err = extractHTML(in.Data)
	case model.ExtractorCSV:
		res.Text, err = x.extractCSV(in.Data, in.MediaType)
	case model.ExtractorSheet:
		res.Text, err = extractSheet(in.Data)
	case model.ExtractorJSON:
		res, err = extractJSON(in.Data)
	default:
		err = errNoExtractor
	}
	if err == nil {
		if off := strings.IndexByte(res.Text, 0); off >= 0 {
			err = &EncodingError{Encoding: "utf-8", Offset: off, NUL: true}
		}
	}
	if err != nil {
		return Result{}, &ExtractionError{Bucket: in.Bucket, Cause: err}
	}
	return res, nil
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

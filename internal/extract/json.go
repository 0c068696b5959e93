package extract

import (
	"bytes"
	"encoding/json"
)

// extractJSON keeps the raw decoded text and the compacted document.
func extractJSON(data []byte) (Result, error) {
	data = trimBOM(data)
	if off := invalidUTF8Offset(data); off >= 0 {
		return Result{}, &MalformedPayloadError{Cause: &EncodingError{Encoding: "utf-8", Offset: off}}
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Result{}, &MalformedPayloadError{Cause: err}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return Result{}, &MalformedPayloadError{Cause: err}
	}
	return Result{
		Text:       string(data),
		Structured: json.RawMessage(compact.Bytes()),
	}, nil
}

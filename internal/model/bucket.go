package model

import (
	"fmt"
	"strings"
)

// Bucket is a fixed storage partition keyed by media-type category.
type Bucket string

const (
	BucketPDF   Bucket = "pdf"
	BucketImage Bucket = "image"
	BucketWord  Bucket = "word"
	BucketText  Bucket = "text"
	BucketCSV   Bucket = "csv"
	BucketJSON  Bucket = "json"
	BucketOther Bucket = "other"
)

// Buckets lists every partition in its canonical order.
// Listing and search results follow this order.
var Buckets = []Bucket{
	BucketPDF,
	BucketImage,
	BucketWord,
	BucketText,
	BucketCSV,
	BucketJSON,
	BucketOther,
}

// ParseBucket converts a user supplied name into a Bucket.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q", s)
	}
	return b, nil
}

// Valid reports whether b is one of the known partitions.
func (b Bucket) Valid() bool {
	switch b {
	case BucketPDF, BucketImage, BucketWord, BucketText, BucketCSV, BucketJSON, BucketOther:
		return true
	}
	return false
}

// Extractable reports whether members of the bucket carry a content record.
func (b Bucket) Extractable() bool {
	switch b {
	case BucketPDF, BucketWord, BucketText, BucketCSV, BucketJSON:
		return true
	case BucketImage, BucketOther:
		return false
	}
	return false
}

// ExtractableBuckets returns the buckets that own a content table, in canonical order.
func ExtractableBuckets() []Bucket {
	out := make([]Bucket, 0, len(Buckets))
	for _, b := range Buckets {
		if b.Extractable() {
			out = append(out, b)
		}
	}
	return out
}

func (b Bucket) String() string { return string(b) }

// ExtractorKind selects the decoder used to derive text from a blob.
type ExtractorKind string

const (
	ExtractorNone  ExtractorKind = ""
	ExtractorPDF   ExtractorKind = "pdf"
	ExtractorWord  ExtractorKind = "word"
	ExtractorText  ExtractorKind = "text"
	ExtractorHTML  ExtractorKind = "html"
	ExtractorCSV   ExtractorKind = "csv"
	ExtractorSheet ExtractorKind = "sheet"
	ExtractorJSON  ExtractorKind = "json"
)

// ParseExtractorKind converts a configured extractor name.
func ParseExtractorKind(s string) (ExtractorKind, error) {
	k := ExtractorKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ExtractorNone, ExtractorPDF, ExtractorWord, ExtractorText, ExtractorHTML,
		ExtractorCSV, ExtractorSheet, ExtractorJSON:
		return k, nil
	}
	if k == "none" {
		return ExtractorNone, nil
	}
	return "", fmt.Errorf("unknown extractor %q", s)
}

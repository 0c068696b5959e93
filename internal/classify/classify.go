// Package classify maps declared media types to storage buckets.
package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"docvault/internal/model"
)

// Classification is the routing decision for one media type.
type Classification struct {
	Bucket      model.Bucket
	Extractable bool
	Extractor   model.ExtractorKind
}

// Rule binds a media type pattern to a bucket and extractor.
// Pattern is either an exact type ("text/csv"), a major wildcard ("image/*")
// or a structured syntax suffix ("*/*+json").
type Rule struct {
	Pattern   string
	Bucket    model.Bucket
	Extractor model.ExtractorKind
}

// DefaultRules is the built-in classification table.
var DefaultRules = []Rule{
	{Pattern: "application/pdf", Bucket: model.BucketPDF, Extractor: model.ExtractorPDF},
	{Pattern: "image/*", Bucket: model.BucketImage},
	{Pattern: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Bucket: model.BucketWord, Extractor: model.ExtractorWord},
	{Pattern: "text/csv", Bucket: model.BucketCSV, Extractor: model.ExtractorCSV},
	{Pattern: "application/csv", Bucket: model.BucketCSV, Extractor: model.ExtractorCSV},
	{Pattern: "text/comma-separated-values", Bucket: model.BucketCSV, Extractor: model.ExtractorCSV},
	{Pattern: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Bucket: model.BucketCSV, Extractor: model.ExtractorSheet},
	{Pattern: "application/json", Bucket: model.BucketJSON, Extractor: model.ExtractorJSON},
	{Pattern: "text/json", Bucket: model.BucketJSON, Extractor: model.ExtractorJSON},
	{Pattern: "*/*+json", Bucket: model.BucketJSON, Extractor: model.ExtractorJSON},
	{Pattern: "text/html", Bucket: model.BucketText, Extractor: model.ExtractorHTML},
	{Pattern: "text/*", Bucket: model.BucketText, Extractor: model.ExtractorText},
}

// Classifier is a deterministic, total function over a fixed table.
// It is safe for concurrent use once built.
type Classifier struct {
	exact  map[string]Rule
	major  map[string]Rule
	suffix map[string]Rule
}

// New builds a classifier from rules. Later rules replace earlier ones with the same pattern.
func New(rules []Rule) (*Classifier, error) {
	c := &Classifier{
		exact:  make(map[string]Rule),
		major:  make(map[string]Rule),
		suffix: make(map[string]Rule),
	}
	for _, r := range rules {
		if err := c.add(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classifier) add(r Rule) error {
	if !r.Bucket.Valid() {
		return fmt.Errorf("rule %q: unknown bucket %q", r.Pattern, r.Bucket)
	}
	if r.Bucket.Extractable() && r.Extractor == model.ExtractorNone {
		return fmt.Errorf("rule %q: bucket %s requires an extractor", r.Pattern, r.Bucket)
	}
	if !r.Bucket.Extractable() && r.Extractor != model.ExtractorNone {
		return fmt.Errorf("rule %q: bucket %s does not take an extractor", r.Pattern, r.Bucket)
	}

	p := normalize(r.Pattern)
	switch {
	case strings.HasPrefix(p, "*/*+"):
		c.suffix[strings.TrimPrefix(p, "*/*+")] = r
	case strings.HasSuffix(p, "/*"):
		c.major[strings.TrimSuffix(p, "/*")] = r
	case strings.Contains(p, "/") && !strings.Contains(p, "*"):
		c.exact[p] = r
	default:
		return fmt.Errorf("invalid media type pattern %q", r.Pattern)
	}
	return nil
}

// Classify never fails: anything without a matching rule lands in "other".
func (c *Classifier) Classify(mediaType string) Classification {
	mt := normalize(mediaType)

	if r, ok := c.exact[mt]; ok {
		return fromRule(r)
	}
	if i := strings.LastIndex(mt, "+"); i >= 0 && strings.Contains(mt, "/") {
		if r, ok := c.suffix[mt[i+1:]]; ok {
			return fromRule(r)
		}
	}
	if i := strings.Index(mt, "/"); i > 0 {
		if r, ok := c.major[mt[:i]]; ok {
			return fromRule(r)
		}
	}
	return Classification{Bucket: model.BucketOther}
}

func fromRule(r Rule) Classification {
	return Classification{
		Bucket:      r.Bucket,
		Extractable: r.Bucket.Extractable(),
		Extractor:   r.Extractor,
	}
}

// normalize drops media type parameters and case.
func normalize(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

type fileRule struct {
	Type      string `yaml:"type"`
	Bucket    string `yaml:"bucket"`
	Extractor string `yaml:"extractor"`
}

type fileTable struct {
	Rules []fileRule `yaml:"rules"`
}

// LoadFile reads extra rules from a YAML file and layers them over DefaultRules.
//
//	rules:
//	  - type: application/x-ndjson
//	    bucket: json
//	    extractor: json
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading classification file: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile without the filesystem.
func Parse(data []byte) (*Classifier, error) {
	var tbl fileTable
	if err := yaml.Unmarshal(data, &tbl); err != nil {
		return nil, fmt.Errorf("parsing classification file: %w", err)
	}

	rules := make([]Rule, 0, len(DefaultRules)+len(tbl.Rules))
	rules = append(rules, DefaultRules...)
	for _, fr := range tbl.Rules {
		b, err := model.ParseBucket(fr.Bucket)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", fr.Type, err)
		}
		k, err := model.ParseExtractorKind(fr.Extractor)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", fr.Type, err)
		}
		rules = append(rules, Rule{Pattern: fr.Type, Bucket: b, Extractor: k})
	}
	return New(rules)
}

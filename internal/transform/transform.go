// Package transform turns one file's pre-fix and post-fix buffers into annotated before/after
// item pairs, one set per rule.
package transform

import (
	"context"
	"sort"

	"rustdiag/internal/align"
	"rustdiag/internal/items"
	"rustdiag/internal/markup"
	"rustdiag/internal/span"
)

// File is the input of one file's transformation.
type File struct {
	Path     string
	Language items.Language
	Original []byte
	Fixed    []byte
	// Before and After are the spans reported for the file before and after the fix pass.
	Before []span.Span
	After  []span.Span
}

// Pair is one changed item filed under a rule. Before and After carry the marked-up item
// text, each prefixed with the rule markers of the rule's fixed spans inside the item when
// prefixing is enabled. Spans lists the rule's pre-fix spans inside the item and may be
// empty when the item was changed on behalf of another rule.
type Pair struct {
	Rule   string      `json:"rule"`
	Path   string      `json:"path"`
	Offset int         `json:"offset"`
	End    int         `json:"end"`
	Before []byte      `json:"-"`
	After  []byte      `json:"-"`
	Spans  []span.Span `json:"spans"`
}

// RuleResult summarizes one rule of one file.
type RuleResult struct {
	Rule      string      `json:"rule"`
	Fixed     []span.Span `json:"fixed"`
	Remaining []span.Span `json:"remaining"`
	Unmatched int         `json:"unmatched"`
	Drift     int         `json:"drift"`
}

// Result is the outcome of transforming one file.
type Result struct {
	Path       string       `json:"path"`
	Rules      []RuleResult `json:"rules"`
	Pairs      []Pair       `json:"pairs"`
	// ExtractErr records why item extraction found nothing, if it failed.
	ExtractErr error        `json:"-"`
}

// Transformer runs the per-file transformation.
type Transformer struct {
	extractor   *items.Extractor
	prefixRules bool
}

// New creates a Transformer. When prefixRules is set, pair buffers start with one rule
// marker line per fixed span inside the item.
func New(prefixRules bool) *Transformer {
	return &Transformer{
		extractor:   items.NewExtractor(),
		prefixRules: prefixRules,
	}
}

// File transforms one file. Rules are processed in sorted order. For each rule the original
// is marked up with the rule's pre-fix spans and the fixed buffer with the rule's remaining
// spans; both are split into items and aligned. Every changed item of the file is filed
// under every rule, whether or not the rule has a span inside it.
func (t *Transformer) File(ctx context.Context, f File) Result {
	res := Result{Path: f.Path}

	before := span.FileSpans{f.Path: f.Before}.ByRule()
	after := span.FileSpans{f.Path: f.After}.ByRule()

	rules := make([]string, 0, len(before))
	for r := range before {
		rules = append(rules, r)
	}
	sort.Strings(rules)

	for _, rule := range rules {
		if ctx.Err() != nil {
			return res
		}
		ruleSpans := before[rule][f.Path]
		fixed, remaining := span.Reconcile(ruleSpans, after[rule][f.Path])
		rr := RuleResult{Rule: rule, Fixed: fixed, Remaining: remaining}

		markedOriginal, index := markup.MarkupIndex(f.Original, ruleSpans)
		markedFixed := markup.Markup(f.Fixed, remaining)

		originalItems, err := t.extractor.Extract(ctx, markedOriginal, f.Language)
		if err != nil && res.ExtractErr == nil {
			res.ExtractErr = err
		}
		fixedItems, err := t.extractor.Extract(ctx, markedFixed, f.Language)
		if err != nil && res.ExtractErr == nil {
			res.ExtractErr = err
		}

		aligned := align.Align(originalItems, fixedItems)
		rr.Unmatched = len(aligned.Unmatched)
		rr.Drift = aligned.Drift

		for _, p := range aligned.Pairs {
			start := index.Source(p.Offset)
			end := index.Source(p.Offset + len(p.Before))

			var inside []span.Span
			for _, s := range ruleSpans {
				if s.Within(start, end) {
					inside = append(inside, s)
				}
			}

			out := Pair{Rule: rule, Path: f.Path, Offset: start, End: end, Spans: inside}
			if t.prefixRules {
				prefix := markup.Rules(start, end, fixed)
				out.Before = concat(prefix, p.Before)
				out.After = concat(prefix, p.After)
			} else {
				out.Before = p.Before
				out.After = p.After
			}
			res.Pairs = append(res.Pairs, out)
		}
		res.Rules = append(res.Rules, rr)
	}

	return res
}

func concat(prefix, body []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(body))
	out = append(out, prefix...)
	return append(out, body...)
}

package listing

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/propharvest/internal/dom"
)

// Input is what a strategy reads from: the page snapshot and the
// characteristics already scraped from it.
type Input struct {
	Doc             *dom.Document
	Characteristics *Characteristics
}

// Strategy is one way of finding a field value. It reports a miss with
// ok == false; an empty string also counts as a miss.
type Strategy interface {
	Extract(in Input) (value string, ok bool)
	Name() string
}

// FieldRule tries its strategies in order. The first hit wins; when all
// miss the field is the sentinel.
type FieldRule struct {
	Field      string
	Strategies []Strategy
}

// evaluate returns the field value for in and the winning strategy, or ""
// on a full miss.
func (r FieldRule) evaluate(in Input) (string, string) {
	for _, s := range r.Strategies {
		if v, ok := s.Extract(in); ok && v != "" {
			return v, s.Name()
		}
	}
	return Sentinel, ""
}

// SelectorText reads the text of the first element matching Selector.
type SelectorText struct {
	Selector string
}

func (s SelectorText) Extract(in Input) (string, bool) {
	return in.Doc.Text(s.Selector)
}

func (s SelectorText) Name() string {
	return "text(" + s.Selector + ")"
}

// SelectorAttr reads an attribute of the first element matching Selector.
type SelectorAttr struct {
	Selector string
	Attr     string
}

func (s SelectorAttr) Extract(in Input) (string, bool) {
	return in.Doc.Attr(s.Selector, s.Attr)
}

func (s SelectorAttr) Name() string {
	return fmt.Sprintf("attr(%s@%s)", s.Selector, s.Attr)
}

// TaggedValue scans repeated label/value items and returns the value of
// the first whose label contains Marker.
type TaggedValue struct {
	Items  string
	Label  string
	Value  string
	Marker string
}

func (s TaggedValue) Extract(in Input) (string, bool) {
	var (
		value string
		found bool
	)
	in.Doc.Each(s.Items, func(el dom.Element) {
		if found {
			return
		}
		label, ok := el.ChildText(s.Label)
		if !ok || !strings.Contains(label, s.Marker) {
			return
		}
		// The first matching item decides, even when its value is missing.
		found = true
		value, _ = el.ChildText(s.Value)
	})
	return value, found
}

func (s TaggedValue) Name() string {
	return "tag(" + s.Marker + ")"
}

// NthText reads the text of the Index-th (0-based) element matching
// Selector.
type NthText struct {
	Selector string
	Index    int
}

func (s NthText) Extract(in Input) (string, bool) {
	texts := in.Doc.Texts(s.Selector)
	if s.Index < 0 || s.Index >= len(texts) {
		return "", false
	}
	return texts[s.Index], true
}

func (s NthText) Name() string {
	return fmt.Sprintf("nth(%s,%d)", s.Selector, s.Index)
}

// CharacteristicLookup returns the characteristic stored under the first
// label present.
type CharacteristicLookup struct {
	Labels []string
}

func (s CharacteristicLookup) Extract(in Input) (string, bool) {
	if in.Characteristics == nil {
		return "", false
	}
	for _, label := range s.Labels {
		if v, ok := in.Characteristics.Get(label); ok {
			return v, true
		}
	}
	return "", false
}

func (s CharacteristicLookup) Name() string {
	return "characteristic(" + strings.Join(s.Labels, "|") + ")"
}

package ingest

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var foldPool = sync.Pool{ //nolint:gochecknoglobals // transformer chains are stateful
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)), // zero-width joiners and friends
			width.Fold,
		)
	},
}

// fold maps s to a comparison form: NFKC, case folded, format characters
// dropped, whitespace collapsed.
func fold(s string) string {
	if s == "" {
		return ""
	}
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, strings.ToValidUTF8(s, ""))
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

// TagMatcher reports whether a post body carries the campaign tag.
// A trailing ellipsis in the tag marks an open-ended phrase and is not
// required in the body.
type TagMatcher struct {
	tag string
}

// NewTagMatcher prepares tag for matching.
func NewTagMatcher(tag string) *TagMatcher {
	t := strings.TrimRight(fold(tag), ". ")
	return &TagMatcher{tag: t}
}

// Match reports whether body contains the tag. An empty tag matches nothing.
func (m *TagMatcher) Match(body string) bool {
	if m.tag == "" {
		return false
	}
	return strings.Contains(fold(body), m.tag)
}

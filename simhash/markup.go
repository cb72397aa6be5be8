package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// FingerprintMarkup computes a SimHash of the element structure of a page:
// the sequence of opening tags, shingled in threes. Text and attributes are
// ignored, so a gate page and the product page behind it differ even when
// they share most of their copy.
func FingerprintMarkup(src string) uint64 {
	tags := openTags(src)
	if len(tags) == 0 {
		return 0
	}
	if sh := shingles(tags, 3); len(sh) > 0 {
		return accumulate(sh)
	}
	return accumulate(tags)
}

// openTags collects opening tag names in document order.
func openTags(src string) []string {
	z := html.NewTokenizer(strings.NewReader(src))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}

// shingles returns the n-grams of tokens joined by "_".
func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}

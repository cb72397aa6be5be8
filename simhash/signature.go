package simhash

// DefaultThreshold is the largest bit distance still considered "the same
// page" for both halves of a Signature.
const DefaultThreshold = 3

// Signature identifies the state of a rendered page.
type Signature struct {
	Text   uint64
	Markup uint64
}

// Of computes the signature of a page from its visible text and markup.
func Of(visibleText, markup string) Signature {
	return Signature{Text: Fingerprint(visibleText), Markup: FingerprintMarkup(markup)}
}

// Changed reports whether b differs from a by more than threshold bits in
// either its text or its markup fingerprint.
func Changed(a, b Signature, threshold int) bool {
	return !Similar(a.Text, b.Text, threshold) || !Similar(a.Markup, b.Markup, threshold)
}

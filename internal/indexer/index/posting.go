package index

import "github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"

// TermEntry is one term with its doc-ordered postings.
type TermEntry struct {
	Term     string
	Postings []posting.Posting
}

package tokenizer

import "strings"

// Word indexes every stemmed word of the visible text.
type Word struct {
	DropStopWords bool
}

func (w Word) Name() string {
	if w.DropStopWords {
		return "word-nostop"
	}
	return "word"
}

func (w Word) Tokenize(url string, page *Page) Result {
	res := newResult(url)
	for _, text := range page.Text {
		for _, term := range Words(text, w.DropStopWords) {
			res.add(term)
		}
	}
	return res
}

func (w Word) TokenizeQuery(query string) []string {
	return Words(query, w.DropStopWords)
}

// NGram indexes every run of N consecutive stemmed words, joined by a single
// space. Runs span text node boundaries.
type NGram struct {
	N int
}

func (g NGram) Name() string {
	switch g.N {
	case 2:
		return "bigram"
	case 3:
		return "trigram"
	default:
		return "ngram"
	}
}

func (g NGram) Tokenize(url string, page *Page) Result {
	var words []string
	for _, text := range page.Text {
		words = append(words, Words(text, false)...)
	}
	res := newResult(url)
	for _, gram := range grams(words, g.N) {
		res.add(gram)
	}
	return res
}

// TokenizeQuery returns no terms for queries shorter than N words.
func (g NGram) TokenizeQuery(query string) []string {
	return grams(Words(query, false), g.N)
}

func grams(words []string, n int) []string {
	if n <= 0 || len(words) < n {
		return nil
	}
	out := make([]string, 0, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+n], " "))
	}
	return out
}

// Bold indexes words that are emphasised or part of the title.
type Bold struct{}

func (Bold) Name() string { return "bold" }

func (Bold) Tokenize(url string, page *Page) Result {
	res := newResult(url)
	for _, text := range page.Emphasis {
		for _, term := range Words(text, false) {
			res.add(term)
		}
	}
	for _, term := range Words(page.Title, false) {
		res.add(term)
	}
	return res
}

func (Bold) TokenizeQuery(query string) []string {
	return Words(query, false)
}

// Package tokenizer turns corpus documents into term counts. It decodes the
// JSON corpus record, extracts visible text from the HTML payload,
// normalises and stems words, and exposes several term extraction variants
// (words, n-grams, emphasised text) behind one Tokenizer interface.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// maxNumericLen drops purely numeric tokens longer than this.
const maxNumericLen = 5

var permittedEncodings = map[string]struct{}{
	"utf-8": {}, "latin-1": {}, "utf-16": {}, "utf-32": {}, "ascii": {},
	"iso-8859-1": {}, "utf-8-sig": {}, "euc-kr": {}, "euc-jp": {},
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Document is one corpus record as stored on disk.
type Document struct {
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// LoadDocument decodes the corpus record at path.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing document %s: %w", path, err)
	}
	return doc, nil
}

// Permitted reports whether the declared encoding is one the indexer
// accepts. Documents in other encodings are skipped.
func (d Document) Permitted() bool {
	_, ok := permittedEncodings[strings.ToLower(strings.TrimSpace(d.Encoding))]
	return ok
}

// Result is the term histogram of one document.
type Result struct {
	URL    string
	Counts map[string]int
	Total  int
}

func newResult(url string) Result {
	return Result{URL: url, Counts: make(map[string]int)}
}

func (r *Result) add(term string) {
	r.Counts[term]++
	r.Total++
}

// Tokenizer extracts index terms from a parsed page and query terms from a
// free-text query. Both sides must normalise identically.
type Tokenizer interface {
	Name() string
	Tokenize(url string, page *Page) Result
	TokenizeQuery(query string) []string
}

// New returns the tokenizer registered under kind.
func New(kind string) (Tokenizer, error) {
	switch kind {
	case "word", "":
		return Word{}, nil
	case "word-nostop":
		return Word{DropStopWords: true}, nil
	case "bigram":
		return NGram{N: 2}, nil
	case "trigram":
		return NGram{N: 3}, nil
	case "bold":
		return Bold{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

// Words splits text into normalised, stemmed terms. A word is a maximal run
// of ASCII letters, digits and underscores.
func Words(text string, dropStopWords bool) []string {
	text = strings.ToLower(norm.NFKC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if dropStopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if isLongNumber(word) {
			continue
		}
		stemmed := english.Stem(word, true)
		if stemmed == "" {
			continue
		}
		terms = append(terms, stemmed)
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isLongNumber(token string) bool {
	if len(token) <= maxNumericLen {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return false
		}
	}
	return true
}

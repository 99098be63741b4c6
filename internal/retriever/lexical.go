package retriever

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"pdfrag/internal/domain"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// lexicalSearch ranks passages by the Ochiai coefficient of their word sets
// and the question's. It serves questions whose embedding is all zeros, for
// which cosine similarity is undefined.
func lexicalSearch(passages []domain.Passage, question string, k int) []domain.Hit {
	qset := tokenSet(question)
	hits := make([]domain.Hit, len(passages))
	for i, p := range passages {
		hits[i] = domain.Hit{Passage: p, Score: ochiai(qset, tokenSet(p.Text))}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

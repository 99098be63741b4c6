// Package summarizer produces a short extractive overview of a document
// without calling a model.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"pdfrag/internal/domain"
)

// DefaultMaxSentences is used when Summarize is asked for zero sentences.
const DefaultMaxSentences = 3

var (
	tokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)
)

// Frequency ranks sentences by the normalised frequency of their words.
type Frequency struct {
	stopwords map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Summarize picks up to maxSentences sentences from the passages, in
// document order. Sentences repeated by chunk overlap count once.
func (s *Frequency) Summarize(passages []domain.Passage, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	var sentences []string
	seen := map[string]bool{}
	for _, p := range passages {
		for _, sent := range sentenceRe.FindAllString(p.Text, -1) {
			sent = strings.TrimSpace(sent)
			if len(s.tokens(sent)) == 0 || seen[sent] {
				continue
			}
			seen[sent] = true
			sentences = append(sentences, sent)
		}
	}
	if len(sentences) == 0 {
		return ""
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; !ok {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		total := 0.0
		for _, tok := range toks {
			total += freq[tok]
		}
		// dampen long sentences
		scores[i] = scored{i, total / math.Sqrt(float64(len(toks)))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

func (s *Frequency) tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"i", "my", "me", "we", "our", "you", "your", "he", "she", "they", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

package keywords

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/akolanti/GoChunker/internal/chunker"
	"github.com/akolanti/GoChunker/internal/index/embedding"
)

const (
	maxNgram      = 3
	maxCandidates = 200
)

var stopWords = toSet(strings.Fields(`a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for from further had has
have having he her here hers herself him himself his how i if in into is it its itself just me more most my myself
no nor not now of off on once only or other our ours ourselves out over own same she should so some such than that
the their theirs them themselves then there these they this those through to too under until up very was we were
what when where which while who whom why will with would you your yours yourself yourselves`))

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// SimilarityExtractor ranks candidate phrases of one to three words by the
// cosine similarity of their embedding to the embedding of the whole text.
type SimilarityExtractor struct {
	embedder embedding.Embedder
}

func NewSimilarityExtractor(embedder embedding.Embedder) *SimilarityExtractor {
	return &SimilarityExtractor{embedder: embedder}
}

func (s *SimilarityExtractor) Extract(ctx context.Context, text string, topN int) ([]chunker.Keyword, error) {
	candidates := candidatePhrases(text)
	if len(candidates) == 0 || topN <= 0 {
		return nil, nil
	}

	inputs := append([]string{text}, candidates...)
	vectors, err := s.embedder.BatchEmbedding(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, errors.New("embed candidates: vector count mismatch")
	}

	doc := vectors[0]
	out := make([]chunker.Keyword, 0, len(candidates))
	for i, phrase := range candidates {
		out = append(out, chunker.Keyword{Value: phrase, Score: round4(cosine(doc, vectors[i+1]))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// candidatePhrases returns the distinct n-grams of the lowercased words of
// text that neither start nor end with a stop word, most frequent first.
func candidatePhrases(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	counts := make(map[string]int)
	var order []string
	for i := range words {
		for n := 1; n <= maxNgram && i+n <= len(words); n++ {
			gram := words[i : i+n]
			if stopWords[gram[0]] || stopWords[gram[n-1]] || len([]rune(gram[0])) < 2 {
				continue
			}
			phrase := strings.Join(gram, " ")
			if counts[phrase] == 0 {
				order = append(order, phrase)
			}
			counts[phrase]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxCandidates {
		order = order[:maxCandidates]
	}
	return order
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

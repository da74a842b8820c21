package service

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingDims must match the vector column size on model.Recipe
const EmbeddingDims = 64

var embeddingStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "with": {}, "of": {}, "in": {}, "for": {}, "to": {}, "on": {},
}

// EmbeddingService hashes recipe text into a fixed-size bag-of-words vector. Recipes sharing
// words with a search query land close to it under L2 distance.
type EmbeddingService struct{}

func NewEmbeddingService() *EmbeddingService {
	return &EmbeddingService{}
}

// GenerateEmbedding implements EmbeddingServiceInterface
func (s *EmbeddingService) GenerateEmbedding(text string) (pgvector.Vector, error) {
	return pgvector.NewVector(embed(text)), nil
}

func embed(text string) []float32 {
	vec := make([]float32, EmbeddingDims)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%EmbeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := embeddingStopWords[f]; stop || len(f) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func recipeEmbeddingText(title, description string) string {
	return strings.TrimSpace(title + " " + description)
}

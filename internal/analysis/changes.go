package analysis

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// ChangeStats describes the word-level difference between an original
// sentence and the sentence that came back through the chain.
//
// Word counts are sequence lengths; common, added, and removed are distinct
// word counts (exact case-sensitive token match, no stemming). EditDistance
// and JaroWinkler compare the raw strings, catching character-level drift
// that survives the word-set view.
type ChangeStats struct {
	OriginalWordCount int     `json:"original_word_count"`
	FinalWordCount    int     `json:"final_word_count"`
	CommonWords       int     `json:"common_words"`
	AddedWords        int     `json:"added_words"`
	RemovedWords      int     `json:"removed_words"`
	RetentionRate     float64 `json:"word_retention_rate"`
	EditDistance      int     `json:"edit_distance"`
	JaroWinkler       float64 `json:"jaro_winkler"`
}

// TextChanges computes lexical change statistics between two texts. Both are
// split on whitespace; the retention rate is the share of the original word
// sequence still present in the final word set, defined as 0 when the
// original has no words so an empty original never divides by zero.
func TextChanges(original, final string) ChangeStats {
	originalWords := strings.Fields(original)
	finalWords := strings.Fields(final)

	originalSet := wordSet(originalWords)
	finalSet := wordSet(finalWords)

	var common int
	for w := range originalSet {
		if _, ok := finalSet[w]; ok {
			common++
		}
	}

	stats := ChangeStats{
		OriginalWordCount: len(originalWords),
		FinalWordCount:    len(finalWords),
		CommonWords:       common,
		AddedWords:        len(finalSet) - common,
		RemovedWords:      len(originalSet) - common,
		EditDistance:      matchr.Levenshtein(original, final),
		JaroWinkler:       matchr.JaroWinkler(original, final, false),
	}
	if len(originalWords) > 0 {
		stats.RetentionRate = float64(common) / float64(len(originalWords))
	}
	return stats
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

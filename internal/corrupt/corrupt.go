// Package corrupt injects spelling errors into sentences at a controlled
// rate. It produces the "misspelled" input of each experiment case: a given
// fraction of a sentence's words receive one realistic typo each before the
// sentence enters the translation chain.
//
// All randomness flows from the seed passed at construction, so a run is
// reproducible end to end: the same seed, sentence, and rate always yield the
// same corrupted output.
package corrupt

import (
	"math"
	"math/rand/v2"
	"strings"
	"unicode"
)

// Injector corrupts words in sentences using a seeded random source. It is
// NOT safe for concurrent use; create one per goroutine or serialise calls.
type Injector struct {
	rng *rand.Rand
}

// New returns an Injector seeded with seed. Two injectors with the same seed
// produce identical corruption sequences.
func New(seed uint64) *Injector {
	return &Injector{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Corrupt injects spelling errors into round(rate × word count) distinct
// words of sentence and returns the corrupted sentence along with the number
// of words actually corrupted.
//
// rate is clamped to [0,1]; a rate of 0 returns the sentence unchanged. Only
// words with at least three letters are eligible, so the corrupted count can
// fall short of the target on sentences full of short words. Word order and
// the original whitespace shape are preserved.
func (inj *Injector) Corrupt(sentence string, rate float64) (string, int) {
	rate = math.Min(math.Max(rate, 0), 1)
	if rate == 0 || strings.TrimSpace(sentence) == "" {
		return sentence, 0
	}

	spans := wordSpans(sentence)
	target := int(math.Round(rate * float64(len(spans))))
	if target == 0 {
		return sentence, 0
	}

	var eligible []int
	for i, sp := range spans {
		if letterCount(sentence[sp.start:sp.end]) >= 3 {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return sentence, 0
	}
	if target > len(eligible) {
		target = len(eligible)
	}

	// Pick target distinct eligible words.
	perm := inj.rng.Perm(len(eligible))
	chosen := make(map[int]bool, target)
	for _, p := range perm[:target] {
		chosen[eligible[p]] = true
	}

	var b strings.Builder
	b.Grow(len(sentence) + target)
	prev := 0
	for i, sp := range spans {
		b.WriteString(sentence[prev:sp.start])
		word := sentence[sp.start:sp.end]
		if chosen[i] {
			word = inj.typo(word)
		}
		b.WriteString(word)
		prev = sp.end
	}
	b.WriteString(sentence[prev:])

	return b.String(), target
}

// span marks a maximal non-whitespace run in the input string.
type span struct {
	start, end int
}

func wordSpans(s string) []span {
	var spans []span
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, span{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(s)})
	}
	return spans
}

func letterCount(word string) int {
	n := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

const vowels = "aeiou"

// typo applies one randomly chosen spelling error to word: an adjacent-letter
// transposition, a dropped letter, a doubled letter, or a vowel swap. Letter
// positions are chosen among the word's letters so punctuation attached to
// the token survives intact.
func (inj *Injector) typo(word string) string {
	runes := []rune(word)

	var letters []int
	for i, r := range runes {
		if unicode.IsLetter(r) {
			letters = append(letters, i)
		}
	}
	if len(letters) < 2 {
		return word
	}

	switch inj.rng.IntN(4) {
	case 0: // transpose two adjacent letters
		for range 4 {
			k := inj.rng.IntN(len(letters) - 1)
			i, j := letters[k], letters[k+1]
			if runes[i] != runes[j] {
				runes[i], runes[j] = runes[j], runes[i]
				return string(runes)
			}
		}
		// All sampled pairs were identical letters; fall through to a drop.
		fallthrough

	case 1: // drop a letter
		i := letters[inj.rng.IntN(len(letters))]
		return string(runes[:i]) + string(runes[i+1:])

	case 2: // double a letter
		i := letters[inj.rng.IntN(len(letters))]
		out := make([]rune, 0, len(runes)+1)
		out = append(out, runes[:i+1]...)
		out = append(out, runes[i])
		out = append(out, runes[i+1:]...)
		return string(out)

	default: // swap a vowel for a different one
		var vowelIdx []int
		for _, i := range letters {
			if strings.ContainsRune(vowels, unicode.ToLower(runes[i])) {
				vowelIdx = append(vowelIdx, i)
			}
		}
		if len(vowelIdx) == 0 {
			// No vowel to swap; transpose the first two letters instead.
			i, j := letters[0], letters[1]
			runes[i], runes[j] = runes[j], runes[i]
			return string(runes)
		}
		i := vowelIdx[inj.rng.IntN(len(vowelIdx))]
		old := unicode.ToLower(runes[i])
		replacement := old
		for replacement == old {
			replacement = rune(vowels[inj.rng.IntN(len(vowels))])
		}
		if unicode.IsUpper(runes[i]) {
			replacement = unicode.ToUpper(replacement)
		}
		runes[i] = replacement
		return string(runes)
	}
}

package summarize

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/JesusIslam/tldr"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// Sentences longer than this are split into pseudo-sentences, which keeps
// unpunctuated transcripts summarizable.
const maxSentenceWords = 40

// Extractive ranks sentences with LexRank and keeps the best ones in their
// original order within the word bounds.
type Extractive struct{}

// NewExtractive returns the in-process LexRank engine.
func NewExtractive() *Extractive {
	return &Extractive{}
}

// Summarize returns bullet notes built from the highest ranked sentences.
func (e *Extractive) Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	counts := make([]int, len(sentences))
	totalWords := 0
	for i, sentence := range sentences {
		counts[i] = len(strings.Fields(sentence))
		totalWords += counts[i]
	}
	if totalWords <= maxWords && (totalWords <= minWords || len(sentences) == 1) {
		return formatNotes(sentences), nil
	}

	target := min(max(totalWords/3, minWords), maxWords)
	input := joinSentences(sentences)

	var picked []int
	for n := 1; n <= len(sentences); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ranked, err := tldr.New().Summarize(input, n)
		if err != nil {
			break
		}
		indexes := matchSentences(sentences, ranked)
		words := 0
		for _, idx := range indexes {
			words += counts[idx]
		}
		if words > maxWords {
			break
		}
		picked = indexes
		if words >= target {
			break
		}
	}

	if len(picked) == 0 {
		return formatNotes([]string{truncateWords(sentences[0], maxWords)}), nil
	}

	sort.Ints(picked)
	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = sentences[idx]
	}
	return formatNotes(out), nil
}

// splitSentences splits on terminal punctuation and then breaks overly long
// sentences into fixed-size word groups.
func splitSentences(text string) []string {
	var out []string
	for _, match := range sentencePattern.FindAllString(text, -1) {
		sentence := strings.Join(strings.Fields(match), " ")
		if sentence == "" || strings.Trim(sentence, ".!? ") == "" {
			continue
		}
		words := strings.Fields(sentence)
		for len(words) > maxSentenceWords {
			out = append(out, strings.Join(words[:maxSentenceWords/2], " "))
			words = words[maxSentenceWords/2:]
		}
		out = append(out, strings.Join(words, " "))
	}
	return out
}

// joinSentences terminates every sentence so the ranker splits where we do.
func joinSentences(sentences []string) string {
	var b strings.Builder
	for i, sentence := range sentences {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		if !strings.ContainsAny(sentence[len(sentence)-1:], ".!?") {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// matchSentences maps ranker output back to sentence indexes. Each index is
// used at most once so repeated sentences stay distinct.
func matchSentences(sentences, ranked []string) []int {
	keys := make([]string, len(sentences))
	for i, sentence := range sentences {
		keys[i] = sentenceKey(sentence)
	}

	used := make([]bool, len(sentences))
	var out []int
	for _, candidate := range ranked {
		key := sentenceKey(candidate)
		if key == "" {
			continue
		}
		for i := range keys {
			if used[i] || keys[i] == "" {
				continue
			}
			if keys[i] == key || strings.Contains(keys[i], key) || strings.Contains(key, keys[i]) {
				used[i] = true
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func sentenceKey(sentence string) string {
	return strings.Trim(strings.ToLower(strings.Join(strings.Fields(sentence), " ")), ".!? ")
}

func truncateWords(sentence string, limit int) string {
	words := strings.Fields(sentence)
	if len(words) <= limit {
		return sentence
	}
	return strings.Join(words[:limit], " ")
}

func formatNotes(sentences []string) string {
	var b strings.Builder
	for i, sentence := range sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(sentence)
	}
	return b.String()
}

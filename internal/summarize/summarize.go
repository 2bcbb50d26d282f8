// Package summarize condenses transcripts into short notes.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"notetube/internal/domain"
	"notetube/internal/logging"
)

// Status tags the outcome of one summarization.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Outcome is the result of Summarize. Text is only meaningful for StatusOK.
type Outcome struct {
	Status Status `json:"status"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Err maps non-OK outcomes to the matching sentinel error.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusOK:
		return nil
	case StatusDegraded:
		return fmt.Errorf("%w: %s", domain.ErrSummarizationDegraded, o.Reason)
	default:
		return fmt.Errorf("%w: %s", domain.ErrSummarizationFailed, o.Reason)
	}
}

// Engine produces a summary of at most maxWords and at least minWords where
// the input allows.
type Engine interface {
	Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error)
}

// Input modes.
const (
	ModeTruncate = "truncate"
	ModeChunk    = "chunk"
)

// Defaults used when options are zero.
const (
	DefaultMaxInputChars = 1024
	DefaultMaxLength     = 200
	DefaultMinLength     = 50
)

// Options controls how long transcripts are fed to the engine.
type Options struct {
	Mode          string
	MaxInputChars int
}

// Summarizer applies the input budget around an Engine.
type Summarizer struct {
	engine Engine
	opts   Options
	logger logrus.FieldLogger
}

// New creates a summarizer. A nil engine uses the extractive engine.
func New(engine Engine, opts Options, logger logrus.FieldLogger) *Summarizer {
	if engine == nil {
		engine = NewExtractive()
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	if opts.Mode == "" {
		opts.Mode = ModeTruncate
	}
	return &Summarizer{engine: engine, opts: opts, logger: logging.OrDiscard(logger)}
}

// Summarize condenses text into notes bounded by maxLen and minLen words.
// It never returns error text as summary content.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLen, minLen int) (out Outcome) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if minLen < 0 || minLen > maxLen {
		minLen = 0
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Outcome{Status: StatusFailed, Reason: "transcript is empty"}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("summarization engine panicked")
			out = Outcome{Status: StatusDegraded, Reason: fmt.Sprintf("summarization engine panicked: %v", r)}
		}
	}()

	if s.opts.Mode == ModeChunk && utf8.RuneCountInString(trimmed) > s.opts.MaxInputChars {
		return s.summarizeChunks(ctx, trimmed, maxLen, minLen)
	}

	input := Truncate(trimmed, s.opts.MaxInputChars)
	summary, err := s.engine.Summarize(ctx, input, maxLen, minLen)
	return s.outcome(summary, err)
}

// Chunk mode limits. Each chunk keeps at least minChunkWords so partial
// notes stay readable; merged notes over maxLen are summarized again.
const (
	minChunkWords   = 10
	maxReducePasses = 4
)

// summarizeChunks summarizes budget-sized chunks and joins the partial notes,
// repeating over the joined notes until they fit maxLen words.
func (s *Summarizer) summarizeChunks(ctx context.Context, text string, maxLen, minLen int) Outcome {
	previousWords := wordCount(text)
	for pass := 1; ; pass++ {
		chunks := Chunk(text, s.opts.MaxInputChars)
		if len(chunks) == 1 {
			outcome := s.outcome(s.engine.Summarize(ctx, chunks[0], maxLen, minLen))
			if outcome.Status == StatusOK {
				outcome.Text = capWords(outcome.Text, maxLen)
			}
			return outcome
		}

		perChunkMax := max(maxLen/len(chunks), min(minChunkWords, maxLen))
		perChunkMin := min(minLen/len(chunks), perChunkMax)

		parts := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			summary, err := s.engine.Summarize(ctx, chunk, perChunkMax, perChunkMin)
			outcome := s.outcome(summary, err)
			if outcome.Status != StatusOK {
				outcome.Reason = fmt.Sprintf("chunk %d of %d: %s", i+1, len(chunks), outcome.Reason)
				return outcome
			}
			parts = append(parts, outcome.Text)
		}

		merged := strings.Join(parts, "\n")
		words := wordCount(merged)
		if words <= maxLen {
			return Outcome{Status: StatusOK, Text: merged}
		}
		if pass == maxReducePasses || words >= previousWords {
			return Outcome{Status: StatusOK, Text: capWords(merged, maxLen)}
		}
		previousWords = words
		s.logger.WithFields(logrus.Fields{"pass": pass, "chunks": len(chunks)}).Debug("notes exceed bound, summarizing again")
		text = notesToText(merged)
	}
}

// notesToText turns bullet notes back into sentences for another pass.
func notesToText(notes string) string {
	var lines []string
	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return joinSentences(lines)
}

// capWords keeps whole lines while they fit limit words and cuts the line
// that crosses it.
func capWords(notes string, limit int) string {
	var out []string
	remaining := limit
	for _, line := range strings.Split(notes, "\n") {
		if remaining <= 0 {
			break
		}
		prefix := ""
		body := strings.TrimSpace(line)
		if strings.HasPrefix(body, "- ") {
			prefix, body = "- ", body[2:]
		}
		words := strings.Fields(body)
		if len(words) <= remaining {
			out = append(out, line)
			remaining -= len(words)
			continue
		}
		out = append(out, prefix+strings.Join(words[:remaining], " "))
		remaining = 0
	}
	return strings.Join(out, "\n")
}

func wordCount(notes string) int {
	count := 0
	for _, line := range strings.Split(notes, "\n") {
		count += len(strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "- ")))
	}
	return count
}

func (s *Summarizer) outcome(summary string, err error) Outcome {
	if err != nil {
		s.logger.WithError(err).Warn("summarization failed")
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Outcome{Status: StatusDegraded, Reason: "summarization produced no text"}
	}
	return Outcome{Status: StatusOK, Text: summary}
}

// Truncate returns at most limit runes of text.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// Chunk splits text into pieces of at most limit runes, preferring sentence
// and then word boundaries.
func Chunk(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitSentences(text) {
		for _, piece := range splitLong(sentence, limit) {
			pieceLen := utf8.RuneCountInString(piece)
			if currentLen > 0 && currentLen+1+pieceLen > limit {
				flush()
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(piece)
			currentLen += pieceLen
		}
	}
	flush()
	return chunks
}

// splitLong breaks a sentence longer than limit runes on word boundaries,
// hard-cutting single words that still exceed it.
func splitLong(sentence string, limit int) []string {
	if utf8.RuneCountInString(sentence) <= limit {
		return []string{sentence}
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(sentence) {
		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > limit {
			pieces = append(pieces, current.String())
			current.Reset()
			currentLen = 0
		}
		for wordLen > limit {
			head := Truncate(word, limit)
			pieces = append(pieces, head)
			word = word[len(head):]
			wordLen = utf8.RuneCountInString(word)
		}
		if wordLen == 0 {
			continue
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if currentLen > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

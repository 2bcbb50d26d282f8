// Package render converts transcript and notes text into downloadable documents.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"notetube/internal/domain"
)

// Format is a supported output document format.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ContentType is served for every rendered document.
const ContentType = "application/octet-stream"

// Base names of the two documents produced for a run.
const (
	TranscriptName = "transcript"
	NotesName      = "organized_notes"
)

// ParseFormat accepts format names case-insensitively, including "docx".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "txt", "text":
		return FormatTXT, nil
	case "word", "docx":
		return FormatWord, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", raw)
	}
}

// Extension returns the file extension for f without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatWord:
		return "docx"
	case FormatPDF:
		return "pdf"
	default:
		return "txt"
	}
}

// FileName builds "<name>.<ext>" for the given format.
func FileName(name string, f Format) string {
	return name + "." + f.Extension()
}

// Request is the input of one render call.
type Request struct {
	Content string
	Format  Format
	Name    string
}

// Render produces the document bytes for req.
func Render(req Request) ([]byte, error) {
	switch req.Format {
	case FormatTXT:
		return []byte(req.Content), nil
	case FormatWord:
		return renderDocx(req.Content)
	case FormatPDF:
		return renderPDF(req.Content, req.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %q", req.Format)
	}
}

// UnsupportedCharacterError names the first rune the PDF font cannot encode.
type UnsupportedCharacterError struct {
	Rune   rune
	Offset int
}

// Error formats the offending rune and its byte offset.
func (e *UnsupportedCharacterError) Error() string {
	return fmt.Sprintf("character %q (U+%04X) at offset %d cannot be encoded in the PDF font", e.Rune, e.Rune, e.Offset)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *UnsupportedCharacterError) Unwrap() error {
	return domain.ErrUnsupportedCharacter
}

// renderPDF lays text out on A4 pages in the core Arial font with 10mm lines.
func renderPDF(content, title string) ([]byte, error) {
	text := normalizeNewlines(content)
	if err := checkCP1252(text); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)

	translate := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(0, 10, translate(text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// checkCP1252 rejects runes outside the single-byte encoding of the core fonts.
func checkCP1252(text string) error {
	for offset, r := range text {
		if r == '\n' || r == '\t' {
			continue
		}
		if r < 0x20 {
			return &UnsupportedCharacterError{Rune: r, Offset: offset}
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return &UnsupportedCharacterError{Rune: r, Offset: offset}
		}
	}
	return nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

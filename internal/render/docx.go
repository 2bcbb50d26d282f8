package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
)

// renderDocx writes a Word document with one paragraph per input line.
func renderDocx(content string) ([]byte, error) {
	document, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("create docx: %w", err)
	}

	for _, line := range strings.Split(normalizeNewlines(content), "\n") {
		document.AddParagraph(line)
	}

	var buf bytes.Buffer
	if err := document.Write(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

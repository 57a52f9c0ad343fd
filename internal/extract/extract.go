// Package extract turns raw attachment bytes into a short list of text
// lines for logging. Extraction failures are always contained by the
// caller; they never abort a scan.
package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// UnsupportedTypeError reports an attachment content type the extractor
// cannot handle.
type UnsupportedTypeError struct {
	MIMEType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.MIMEType)
}

// Extractor turns raw attachment bytes into extracted text lines.
type Extractor interface {
	Extract(data []byte, mimeType string) ([]string, error)
}

// TextExtractor handles the plain-text content-type family. Anything else
// yields an UnsupportedTypeError.
type TextExtractor struct {
	// MaxLines caps the number of returned lines; 0 means the default of 10.
	MaxLines int
}

func (x TextExtractor) Extract(data []byte, mimeType string) ([]string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "text/plain", "text/csv", "text/tab-separated-values":
	default:
		return nil, &UnsupportedTypeError{MIMEType: mimeType}
	}

	max := x.MaxLines
	if max <= 0 {
		max = 10
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= max {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan text: %w", err)
	}
	return lines, nil
}

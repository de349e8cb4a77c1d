package modules

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter reports an opened but never closed `---` block.
var ErrMissingClosingDelimiter = errors.New("front-matter block not closed")

var fmDelimiter = []byte("---\n")

// SplitFrontmatter separates a leading `---` delimited YAML front-matter
// block from the document body and parses it. Documents without a block
// return a nil map and the full input as body.
func SplitFrontmatter(source []byte) (map[string]any, []byte, error) {
	normalized := bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, fmDelimiter) {
		return nil, source, nil
	}

	rest := normalized[len(fmDelimiter):]
	var block, body []byte
	switch {
	case bytes.HasPrefix(rest, fmDelimiter):
		// Empty block: the closing delimiter follows immediately.
		body = rest[len(fmDelimiter):]
	default:
		// The closing delimiter must sit at the start of its own line.
		if i := bytes.Index(rest, []byte("\n---\n")); i >= 0 {
			block, body = rest[:i+1], rest[i+len("\n---\n"):]
		} else if bytes.HasSuffix(rest, []byte("\n---")) {
			block = rest[:len(rest)-len("---")]
		} else {
			return nil, nil, ErrMissingClosingDelimiter
		}
	}

	fm, err := ParseFrontmatter(block)
	if err != nil {
		return nil, nil, err
	}
	return fm, body, nil
}

// ParseFrontmatter parses a raw YAML front-matter block (without delimiters)
// into a map.
func ParseFrontmatter(block []byte) (map[string]any, error) {
	fm := map[string]any{}
	if len(bytes.TrimSpace(block)) == 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("parsing front-matter: %w", err)
	}
	return fm, nil
}

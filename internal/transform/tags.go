package transform

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Recognized element names. Matching is case-sensitive: the tokenizer folds
// tag names to lowercase, so every match additionally checks the raw token
// text spells the name in lowercase. A folded variant like <INCLUDE> passes
// through as literal markup.
const (
	tagFrontmatter = "front-matter"
	tagInclude     = "include"
	tagEnv         = "env"
	tagSlot        = "slot"
)

// containsRecognizedTag is the fast-path check: a document without any of
// the recognized tag names never allocates transform state. It is a
// conservative substring test; the tokenizer decides what is actually a tag.
func containsRecognizedTag(doc string) bool {
	return strings.Contains(doc, "<"+tagFrontmatter) ||
		strings.Contains(doc, "<"+tagInclude) ||
		strings.Contains(doc, "<"+tagEnv)
}

func isRecognized(name string) bool {
	return name == tagFrontmatter || name == tagInclude || name == tagEnv
}

// writtenAs reports whether the raw token text spells the element name
// exactly as given. The tokenizer's folded name is positionally exact, so a
// prefix comparison against the raw bytes recovers the author's casing.
func writtenAs(raw []byte, name string, endTag bool) bool {
	prefix := "<" + name
	if endTag {
		prefix = "</" + name
	}
	return bytes.HasPrefix(raw, []byte(prefix))
}

// segment is one slice of a scanned document: either literal markup copied
// through untouched, or a recognized tag occurrence awaiting a replacement.
type segment struct {
	literal string
	tag     *tagOccurrence
}

// tagOccurrence is one recognized tag with its attributes and raw children.
type tagOccurrence struct {
	name        string
	attrs       map[string]string
	children    string
	selfClosing bool
}

// scan splits a document into literal segments and recognized tag
// occurrences, in document order. Unrecognized markup passes through
// byte-for-byte: the tokenizer's raw token text is copied verbatim.
func scan(doc string) ([]segment, error) {
	z := html.NewTokenizer(strings.NewReader(doc))

	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				flush()
				return segs, nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			// Raw must be copied before TagName/TagAttr touch the buffer.
			raw := append([]byte(nil), z.Raw()...)
			nameBytes, hasAttr := z.TagName()
			name := string(nameBytes)
			if !isRecognized(name) || !writtenAs(raw, name, false) {
				lit.Write(raw)
				continue
			}

			occ := &tagOccurrence{
				name:        name,
				attrs:       readAttrs(z, hasAttr),
				selfClosing: tt == html.SelfClosingTagToken,
			}
			if tt == html.StartTagToken {
				children, err := captureChildren(z, name)
				if err != nil {
					return nil, err
				}
				occ.children = children
			}

			flush()
			segs = append(segs, segment{tag: occ})

		default:
			lit.Write(z.Raw())
		}
	}
}

// captureChildren accumulates the raw content between a recognized start tag
// and its matching end tag, tracking nesting of the same element name. An
// unterminated tag swallows the rest of the document, matching HTML
// semantics for unclosed elements.
func captureChildren(z *html.Tokenizer, name string) (string, error) {
	var b strings.Builder
	depth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String(), nil
			}
			return "", z.Err()

		case html.StartTagToken:
			raw := append([]byte(nil), z.Raw()...)
			n, _ := z.TagName()
			if string(n) == name && writtenAs(raw, name, false) {
				depth++
			}
			b.Write(raw)

		case html.EndTagToken:
			raw := append([]byte(nil), z.Raw()...)
			n, _ := z.TagName()
			if string(n) == name && writtenAs(raw, name, true) {
				if depth == 0 {
					return b.String(), nil
				}
				depth--
			}
			b.Write(raw)

		default:
			b.Write(z.Raw())
		}
	}
}

func readAttrs(z *html.Tokenizer, hasAttr bool) map[string]string {
	attrs := make(map[string]string)
	for hasAttr {
		key, val, more := z.TagAttr()
		attrs[string(key)] = string(val)
		hasAttr = more
	}
	return attrs
}

package transform

import (
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// rewriteIncludeSrcs rewrites relative include src attributes in spliced
// content to absolute paths resolved against the content's own directory.
// Included fragments are authored relative to their own location, but once
// inlined they are re-scanned from the entrypoint; without the rewrite the
// next pass would resolve their includes against the wrong base. Sources for
// which isLogical reports true are registered module paths, not files, and
// are left alone.
func rewriteIncludeSrcs(content, baseDir string, isLogical func(string) bool) string {
	if !strings.Contains(content, "<"+tagInclude) {
		return content
	}

	z := html.NewTokenizer(strings.NewReader(content))
	var out strings.Builder

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out.String()
			}
			// Tokenizer errors other than EOF do not occur for string
			// inputs; keep whatever was already written.
			return out.String()

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			nameBytes, hasAttr := z.TagName()
			if string(nameBytes) != tagInclude || !writtenAs(raw, tagInclude, false) {
				out.Write(raw)
				continue
			}

			attrs := readAttrList(z, hasAttr)
			rewritten := false
			for i, attr := range attrs {
				if attr.key != "src" || attr.val == "" || filepath.IsAbs(attr.val) {
					continue
				}
				if isLogical != nil && isLogical(attr.val) {
					continue
				}
				attrs[i].val = filepath.Join(baseDir, attr.val)
				rewritten = true
			}
			if !rewritten {
				out.Write(raw)
				continue
			}
			out.WriteString(rebuildTag(tagInclude, attrs, tt == html.SelfClosingTagToken))

		default:
			out.Write(z.Raw())
		}
	}
}

type attrPair struct {
	key string
	val string
}

func readAttrList(z *html.Tokenizer, hasAttr bool) []attrPair {
	var attrs []attrPair
	for hasAttr {
		key, val, more := z.TagAttr()
		attrs = append(attrs, attrPair{key: string(key), val: string(val)})
		hasAttr = more
	}
	return attrs
}

func rebuildTag(name string, attrs []attrPair, selfClosing bool) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	for _, attr := range attrs {
		b.WriteByte(' ')
		b.WriteString(attr.key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attr.val))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}

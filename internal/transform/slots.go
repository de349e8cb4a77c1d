package transform

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	wefterrors "github.com/weftworks/weft/internal/errors"
)

// fillSlot replaces the single slot marker in rendered markup with the
// include tag's original children and reports whether a slot was found.
// Only one slot (the default slot) is supported: a second marker, a
// duplicate slot name, or a slot with body content is a structural error
// that aborts the whole document transform.
func fillSlot(markup, children string) (string, bool, error) {
	if !strings.Contains(markup, "<"+tagSlot) {
		return markup, false, nil
	}

	z := html.NewTokenizer(strings.NewReader(markup))
	var out strings.Builder
	found := false
	names := make(map[string]struct{})

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out.String(), found, nil
			}
			return "", false, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			nameBytes, hasAttr := z.TagName()
			if string(nameBytes) != tagSlot || !writtenAs(raw, tagSlot, false) {
				out.Write(raw)
				continue
			}

			attrs := readAttrs(z, hasAttr)
			slotName := attrs["name"]
			if slotName == "" {
				slotName = "default"
			}
			if _, dup := names[slotName]; dup {
				return "", false, wefterrors.NewStructuralError(tagSlot, "",
					"duplicate slot name \""+slotName+"\" in rendered fragment")
			}
			names[slotName] = struct{}{}
			if found {
				return "", false, wefterrors.NewStructuralError(tagSlot, "",
					"multiple slots in rendered fragment, only the default slot is supported")
			}
			found = true

			if tt == html.StartTagToken {
				body, err := captureChildren(z, tagSlot)
				if err != nil {
					return "", false, err
				}
				if strings.TrimSpace(body) != "" {
					return "", false, wefterrors.NewStructuralError(tagSlot, "", "slot tags must be empty")
				}
			}
			out.WriteString(children)

		default:
			out.Write(z.Raw())
		}
	}
}

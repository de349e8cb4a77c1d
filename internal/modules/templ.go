package modules

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// templRenderer adapts a templ component factory to the Renderer interface,
// so templ-authored components can be registered as renderer modules.
type templRenderer struct {
	factory func(props Props) templ.Component
}

// Templ wraps a templ component factory as a Renderer. The factory is invoked
// once per include occurrence with that occurrence's merged properties.
func Templ(factory func(props Props) templ.Component) Renderer {
	return templRenderer{factory: factory}
}

// Render implements Renderer.
func (r templRenderer) Render(ctx context.Context, props Props) (string, error) {
	var sb strings.Builder
	if err := r.factory(props).Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

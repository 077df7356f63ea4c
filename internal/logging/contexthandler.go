package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes computed at log time, such as which
// project is open in the editor.
type ContextProvider func() []slog.Attr

// EditorContext tags records with the open project's id and the selected
// frame index. Records logged with no project open are left alone.
func EditorContext(state func() (projectID string, frame int)) ContextProvider {
	return func() []slog.Attr {
		id, frame := state()
		if id == "" {
			return nil
		}
		return []slog.Attr{slog.String("projectId", id), slog.Int("frame", frame)}
	}
}

// ContextHandler appends the provider's attributes to every record it
// passes on. The provider runs on the logging goroutine, so it must not
// take locks that the caller may already hold.
type ContextHandler struct {
	slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: provider}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.Handler.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.wrap(h.Handler.WithGroup(name))
}

func (h *ContextHandler) wrap(inner slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: h.provider}
}

// Package logging renders slog records as GitHub Actions workflow commands.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

// ActionsHandler is a slog.Handler that writes through the actions toolkit.
// Debug records become ::debug:: commands, warnings and errors become
// annotations and everything else is printed as plain log lines.
type ActionsHandler struct {
	action *githubactions.Action
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewActionsHandler returns a handler that drops records below level.
func NewActionsHandler(action *githubactions.Action, level slog.Leveler) *ActionsHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ActionsHandler{action: action, level: level}
}

func (h *ActionsHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *ActionsHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})
	line := b.String()

	switch {
	case r.Level >= slog.LevelError:
		h.action.Errorf("%s", line)
	case r.Level >= slog.LevelWarn:
		h.action.Warningf("%s", line)
	case r.Level >= slog.LevelInfo:
		h.action.Infof("%s", line)
	default:
		h.action.Debugf("%s", line)
	}
	return nil
}

func (h *ActionsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.groups, attrs)...)
	return &nh
}

func (h *ActionsHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string(nil), h.groups...), name)
	return &nh
}

// qualify bakes the current group path into attrs so later groups do not re-prefix them.
func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	return []slog.Attr{slog.Group(strings.Join(groups, "."), anyAttrs(attrs)...)}
}

func anyAttrs(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key == "" {
			key = prefix
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\"=") {
		v = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, " %s=%s", key, v)
}

// Package router resolves view locations such as "/live?mode=viewer&id=..." into a Route
// and applies the per-mode view restrictions.
package router

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrUnknownView = errors.New("unknown view")

// View is a top-level screen.
type View string

const (
	ViewHome     View = "home"
	ViewLive     View = "live"
	ViewList     View = "list"
	ViewEditor   View = "editor"
	ViewCalendar View = "calendar"
	ViewTV       View = "tv"
)

// Views lists every view in dock order.
var Views = []View{ViewHome, ViewLive, ViewList, ViewEditor, ViewCalendar, ViewTV}

// Mode controls which views and mutations a participant may use.
type Mode string

const (
	ModeEditor   Mode = "editor"
	ModeViewer   Mode = "viewer"
	ModeCoEditor Mode = "coeditor"
)

// ParseMode maps a query value to a Mode. Anything unrecognised is an editor.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeViewer:
		return ModeViewer
	case ModeCoEditor:
		return ModeCoEditor
	default:
		return ModeEditor
	}
}

// ReadOnly reports whether sessions opened in this mode are read-only.
func (m Mode) ReadOnly() bool { return m == ModeViewer }

// CanMutate reports whether program content and timer controls are available.
func (m Mode) CanMutate() bool { return !m.ReadOnly() }

// Allows reports whether the view is reachable in this mode.
func (m Mode) Allows(v View) bool {
	switch m {
	case ModeViewer:
		return v != ViewHome && v != ViewEditor && v != ViewCalendar
	case ModeCoEditor:
		return v != ViewHome && v != ViewCalendar
	default:
		return true
	}
}

// Nav returns the dock entries shown in this mode. The TV view is opened directly and never
// appears in the dock.
func (m Mode) Nav() []View {
	var out []View
	for _, v := range Views {
		if v != ViewTV && m.Allows(v) {
			out = append(out, v)
		}
	}
	return out
}

// Route is a resolved location.
type Route struct {
	View      View
	Mode      Mode
	ProgramID string
	Import    string
}

func viewFromPath(p string) (View, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return ViewHome, nil
	}
	for _, v := range Views {
		if v != ViewHome && string(v) == p {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, p)
}

// Parse reads a location of the form "/<view>?mode=..&id=..&import=..". A leading "#" is
// accepted so that full hash-routed share URLs can be pasted as-is.
func Parse(location string) (Route, error) {
	location = strings.TrimSpace(location)
	if i := strings.Index(location, "#"); i >= 0 {
		location = location[i+1:]
	}

	u, err := url.Parse(location)
	if err != nil {
		return Route{}, fmt.Errorf("failed to parse location: %w", err)
	}

	view, err := viewFromPath(u.Path)
	if err != nil {
		return Route{}, err
	}

	q := u.Query()
	return Route{
		View:      view,
		Mode:      ParseMode(q.Get("mode")),
		ProgramID: q.Get("id"),
		Import:    q.Get("import"),
	}, nil
}

// Resolve redirects a route the mode may not use to the live view. The import token
// travels with the redirect so a shared link still hydrates its program.
func Resolve(r Route) Route {
	if r.Mode == "" {
		r.Mode = ModeEditor
	}
	if r.Mode.Allows(r.View) {
		return r
	}
	r.View = ViewLive
	return r
}

// Path returns the URL path for the view.
func (v View) Path() string {
	if v == ViewHome {
		return "/"
	}
	return "/" + string(v)
}

// String renders the route as a location. The import token is already URL-safe and is
// written verbatim.
func (r Route) String() string {
	mode := r.Mode
	if mode == "" {
		mode = ModeEditor
	}

	var sb strings.Builder
	sb.WriteString(r.View.Path())
	sb.WriteString("?mode=")
	sb.WriteString(string(mode))
	if r.ProgramID != "" {
		sb.WriteString("&id=")
		sb.WriteString(url.QueryEscape(r.ProgramID))
	}
	if r.Import != "" {
		sb.WriteString("&import=")
		sb.WriteString(r.Import)
	}
	return sb.String()
}

// ShareURL builds the hash-routed link a viewer or co-editor opens.
func ShareURL(base string, mode Mode, programID, token string) string {
	r := Route{View: ViewLive, Mode: mode, ProgramID: programID, Import: token}
	return strings.TrimRight(base, "/") + "/#" + r.String()
}

// Package input focuses the in-game search field and replaces its content
// with a target name, preferring clipboard paste and degrading to keystroke
// entry.
package input

import (
	"image"
	"log/slog"
	"time"
)

// Actions externalizes OS interactions (pointer, keyboard, clipboard) so
// tests can inject fakes.
type Actions struct {
	Click          func(x, y int)
	DoubleClick    func(x, y int)
	WriteClipboard func(text string) error
	KeyTap         func(key string, mods ...string) error
	TypeStr        func(s string)
	Location       func() (x, y int)
	Sleep          func(d time.Duration)
}

// Driver performs field replacement through an Actions set.
type Driver struct {
	actions      Actions
	typeInterval time.Duration
	logger       *slog.Logger
}

// NewDriver returns a driver typing fallback characters at typeInterval.
func NewDriver(actions Actions, typeInterval time.Duration, logger *slog.Logger) *Driver {
	if actions.Sleep == nil {
		actions.Sleep = time.Sleep
	}
	return &Driver{actions: actions, typeInterval: typeInterval, logger: logger}
}

// ReplaceField click-focuses the field at anchor and leaves it containing
// exactly name. Fast path is clipboard paste; any clipboard or paste error
// falls back to select-all + delete + per-character typing. Both paths are
// functionally equivalent.
func (d *Driver) ReplaceField(name string, anchor image.Point) {
	d.actions.Click(anchor.X, anchor.Y)
	d.actions.Sleep(50 * time.Millisecond)

	if err := d.paste(name); err != nil {
		if d.logger != nil {
			d.logger.Info("paste failed, falling back to typing", "error", err)
		}
		d.typeOut(name)
	}
}

func (d *Driver) paste(name string) error {
	if err := d.actions.WriteClipboard(name); err != nil {
		return err
	}
	d.actions.Sleep(20 * time.Millisecond)
	if err := d.actions.KeyTap("a", "ctrl"); err != nil {
		return err
	}
	d.actions.Sleep(30 * time.Millisecond)
	return d.actions.KeyTap("v", "ctrl")
}

func (d *Driver) typeOut(name string) {
	_ = d.actions.KeyTap("a", "ctrl")
	d.actions.Sleep(30 * time.Millisecond)
	_ = d.actions.KeyTap("backspace")
	d.actions.Sleep(30 * time.Millisecond)
	for _, r := range name {
		d.actions.TypeStr(string(r))
		d.actions.Sleep(d.typeInterval)
	}
}

// HighlightFirstMatch double-clicks the center of box. Used by pack mode to
// select the first surviving icon.
func (d *Driver) HighlightFirstMatch(left, top, width, height int) {
	cx := left + width/2
	cy := top + height/2
	d.actions.Sleep(300 * time.Millisecond)
	d.actions.DoubleClick(cx, cy)
	d.actions.Sleep(300 * time.Millisecond)
	if d.logger != nil {
		d.logger.Info("double-clicked first match", "x", cx, "y", cy)
	}
}

// Location reports the current pointer position.
func (d *Driver) Location() (x, y int) {
	return d.actions.Location()
}

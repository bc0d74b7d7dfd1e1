// Package xpath implements the internal path grammar shared by every
// FsOps implementation: a forward-slash path, independent of the local
// operating system's separator, plus the slot-mode "<dir>/<id>[:<name>]"
// grammar used by slot-storage filesystems.
package xpath

import (
	"strconv"
	"strings"
)

const Separator = "/"
const Root = "/"

// Chain concatenates dir and name with exactly one separator between them,
// treating "/" as the root sentinel so Chain("/", "17") == "/17" rather
// than "//17".
func Chain(dir, name string) string {
	if dir == "" {
		return name
	}
	if dir == Root {
		return Root + name
	}
	return strings.TrimSuffix(dir, Separator) + Separator + name
}

// Dir returns everything before the last separator, or Root if there is
// none.
func Dir(path string) string {
	i := strings.LastIndex(path, Separator)
	if i <= 0 {
		return Root
	}
	return path[:i]
}

// Base returns everything after the last separator.
func Base(path string) string {
	i := strings.LastIndex(path, Separator)
	return path[i+1:]
}

// Slot is a parsed "<id>[:<name>]" path component.
type Slot struct {
	ID   int32
	Name string
	// HasName reports whether a ":<name>" suffix was present.
	HasName bool
}

// ParseSlot parses the last path component of path as a slot
// reference. Both "17" and "17:My Sample" are accepted.
func ParseSlot(path string) (Slot, bool) {
	comp := Base(path)
	name := ""
	hasName := false
	if i := strings.IndexByte(comp, ':'); i >= 0 {
		name = comp[i+1:]
		comp = comp[:i]
		hasName = true
	}
	id, err := strconv.ParseInt(comp, 10, 32)
	if err != nil {
		return Slot{}, false
	}
	return Slot{ID: int32(id), Name: name, HasName: hasName}, true
}

// FormatSlot renders a slot reference back into the "<id>[:<name>]" form.
func FormatSlot(id int32, name string) string {
	if name == "" {
		return strconv.Itoa(int(id))
	}
	return strconv.Itoa(int(id)) + ":" + name
}

// SanitizeName replaces characters that would break a host filesystem
// with '?'.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '/' || r == '\\' {
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeAlphabet maps every rune not present in alphabet to def, for
// connectors (MicroFreak) whose device firmware only accepts a controlled
// character set.
func SanitizeAlphabet(name, alphabet string, def rune) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(alphabet, r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(def)
		}
	}
	return b.String()
}

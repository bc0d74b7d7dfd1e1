// Package connectors implements the device-matching registry: a
// fixed, ordered list of connector descriptors, each offering a
// Handshake that either claims the connected device or declines with
// ErrNoDevice so the registry can try the next one.
package connectors

import (
	"regexp"
	"strings"

	"github.com/dagargo/elektroid/internal/backend"
	"github.com/dagargo/elektroid/internal/xerr"
)

// ErrNoDevice is returned by a Connector's Handshake when the connected
// device is not the one it handles; the registry tries the next
// candidate rather than failing the whole match.
var ErrNoDevice = xerr.New(xerr.KindNotFound, "connector.handshake", xerr.ErrNotFound)

// Connector describes one device family: a name, an optional regex that
// pre-screens candidates by MIDI port name (matching candidates are
// tried first), whether it uses the standard Universal
// Device Inquiry handshake before its own, and the Handshake function
// that installs filesystems on a matched Backend.
type Connector struct {
	Name      string
	Regex     string
	Standard  bool
	Handshake func(b *backend.Backend) error
}

// registry is the fixed connector list, in registration order. The
// system connector registers here too (with no regex), but
// internal/app opens the "system" pseudo-device by calling
// system.Handshake directly, without Match.
var registry []Connector

// Register appends a connector to the fixed list. Called from each
// connector subpackage's init().
func Register(c Connector) {
	registry = append(registry, c)
}

// Match runs the registry against an opened MIDI backend:
// regex-matching connectors are tried before
// non-matching ones (stable order within each group), the first
// Handshake that returns nil wins, ErrNoDevice tries the next
// candidate, any other error aborts the match entirely. If connName is
// non-empty, only that connector is tried.
func Match(b *backend.Backend, deviceName, connName string) (string, error) {
	if connName != "" {
		for _, c := range registry {
			if c.Name == connName {
				if c.Standard {
					if _, err := b.MidiHandshake(-1); err != nil {
						return "", err
					}
				}
				if err := c.Handshake(b); err != nil {
					return "", err
				}
				return c.Name, nil
			}
		}
		return "", ErrNoDevice
	}

	ordered := orderByRegex(registry, normalizeDeviceName(deviceName))

	// The standard inquiry runs once up front so connectors that match
	// on identity have it available.
	if _, err := b.MidiHandshake(-1); err != nil {
		// A failed Universal Device Inquiry does not rule out a
		// non-standard connector; keep trying.
	}

	for _, c := range ordered {
		if err := c.Handshake(b); err != nil {
			if err == ErrNoDevice || xerr.Is(err, xerr.KindNotFound) {
				continue
			}
			return "", err
		}
		return c.Name, nil
	}
	return "", ErrNoDevice
}

// orderByRegex splits connectors into those whose regex matches
// deviceName (kept in registration order, prepended) and those that
// don't or have no regex (appended in registration order).
func orderByRegex(cs []Connector, deviceName string) []Connector {
	var matching, rest []Connector
	for _, c := range cs {
		if c.Regex == "" {
			rest = append(rest, c)
			continue
		}
		re, err := regexp.Compile("(?i)" + c.Regex)
		if err != nil || !re.MatchString(deviceName) {
			rest = append(rest, c)
			continue
		}
		matching = append(matching, c)
	}
	return append(matching, rest...)
}

// Names returns the registered connector names in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, c := range registry {
		names[i] = c.Name
	}
	return names
}

// normalizeDeviceName trims surrounding whitespace the way ALSA/amidi
// device names sometimes carry, so regex screening isn't thrown off by
// incidental padding.
func normalizeDeviceName(name string) string {
	return strings.TrimSpace(name)
}

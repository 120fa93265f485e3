package remote

import (
	"strings"

	"github.com/vango-dev/hashsync/pkg/hash"
)

// Location mirrors a browser tab's hash on the server. Reports from the
// browser update the mirror and notify subscribers; SetHash updates the
// mirror and asks the browser to navigate.
type Location struct {
	mirror *hash.MemoryLocation
	send   func(hash string) error
}

var _ hash.Location = (*Location)(nil)

func newLocation(initial string, send func(string) error) *Location {
	return &Location{
		mirror: hash.NewMemoryLocation(initial),
		send:   send,
	}
}

// Hash returns the mirrored hash.
func (l *Location) Hash() string {
	return l.mirror.Hash()
}

// SetHash sends the new hash to the browser and notifies subscribers. An
// unchanged hash is not sent.
func (l *Location) SetHash(s string) {
	s = strings.TrimPrefix(s, "#")
	if normalize(s) == l.mirror.Hash() {
		return
	}
	if l.send != nil {
		// A failed send surfaces as a read error on the connection; the
		// mirror still follows the server's intent.
		_ = l.send(s)
	}
	l.mirror.SetHash(s)
}

// Subscribe registers fn for hash changes from either side.
func (l *Location) Subscribe(fn func()) func() {
	return l.mirror.Subscribe(fn)
}

// report applies a hash reported by the browser.
func (l *Location) report(s string) {
	l.mirror.SetHash(s)
}

func normalize(s string) string {
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return ""
	}
	return "#" + s
}

// Package hexdump produces a stable, multi-line hex dump of raw bytes. It
// is a debugging aid only: no connector calls it, and it is not part of
// any wire format.
package hexdump

import (
	"fmt"
	"strings"
)

const bytesPerLine = 16

// Dump renders data as offset-prefixed hex lines, 16 bytes per line,
// followed by the printable ASCII rendering of that line.
func Dump(data []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += bytesPerLine {
		end := offset + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[offset:end]

		fmt.Fprintf(&b, "%08x  ", offset)
		for i := 0; i < bytesPerLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range line {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

package sysex

// parser is the receive state machine as an explicit byte-stream
// parser, decoupled from timeout/cancel accounting (layered on top by
// Transport).
type parser struct {
	buf []byte
}

// isRealtimeStatus reports whether b is a single-byte System Real-Time (or
// System Common, excluding SysEx framing bytes) message that may be
// injected in the middle of a SysEx body and must be stripped.
func isRealtimeStatus(b byte) bool {
	return (b >= 0xf1 && b <= 0xf6) || (b >= 0xf8 && b <= 0xff)
}

// feed appends fresh bytes onto the buffer, first skipping any leading
// run that isn't the start of a SysEx message.
func (p *parser) feed(data []byte) {
	if len(p.buf) == 0 {
		if i := indexF0(data); i > 0 {
			data = data[i:]
		} else if i < 0 {
			// No 0xF0 anywhere in this chunk: nothing usable yet.
			return
		}
	}
	p.buf = append(p.buf, data...)
}

func indexF0(data []byte) int {
	for i, b := range data {
		if b == 0xf0 {
			return i
		}
	}
	return -1
}

// next extracts the next complete message from the buffer, if any,
// stripping interleaved real-time status bytes and dropping the
// degenerate empty message F0 F7. It returns ok=false when no complete
// message is present yet.
func (p *parser) next() (raw []byte, ok bool) {
	for {
		end := -1
		for i, b := range p.buf {
			if b == 0xf7 {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, false
		}

		msg := make([]byte, 0, end+1)
		for _, b := range p.buf[:end+1] {
			if isRealtimeStatus(b) {
				continue
			}
			msg = append(msg, b)
		}
		p.buf = p.buf[end+1:]

		// Re-sync the remainder of the buffer against the next 0xF0.
		if i := indexF0(p.buf); i > 0 {
			p.buf = p.buf[i:]
		} else if i < 0 {
			p.buf = p.buf[:0]
		}

		if len(msg) == 2 && msg[0] == 0xf0 && msg[1] == 0xf7 {
			// Degenerate empty message: drop silently and keep looking.
			continue
		}
		return msg, true
	}
}

func (p *parser) reset() {
	p.buf = p.buf[:0]
}

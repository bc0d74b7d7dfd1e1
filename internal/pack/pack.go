// Package pack implements the 7-bit/8-bit conversions used pervasively by
// MIDI SysEx connectors to move arbitrary binary data and multi-byte
// integers over a 7-bit-safe wire.
package pack

// RightJustified decodes an N-byte, 7-bits-per-byte little-endian integer:
// value = sum(data[i] << (7*i)). Used for ids, frame counts, loop points
// and periods in the MIDI SDS dump header.
func RightJustified(data []byte) uint32 {
	var value uint32
	for i, b := range data {
		value |= uint32(b&0x7f) << (7 * uint(i))
	}
	return value
}

// PutRightJustified encodes value into len(data) bytes using the
// RightJustified convention.
func PutRightJustified(data []byte, value uint32) {
	for i := range data {
		data[i] = byte(value>>(7*uint(i))) & 0x7f
	}
}

// LeftJustified decodes a fixed-width signed value occupying the top `bits`
// bits of a 7*len(data)-bit big-endian quantity, as used for audio samples
// in the MIDI SDS data packet.
func LeftJustified(data []byte, bits uint) int16 {
	var shifted uint32
	n := len(data)
	for i := 0; i < n; i++ {
		shifted |= uint32(data[n-1-i]&0x7f) << (7 * uint(i))
	}
	value := shifted >> (uint(7*n) - bits)
	return int16(int32(value) - 0x8000)
}

// PutLeftJustified encodes svalue into data using the LeftJustified
// convention.
func PutLeftJustified(data []byte, bits uint, svalue int16) {
	n := len(data)
	value := uint32(int32(svalue) + 0x8000)
	value <<= uint(7*n) - bits
	for i := 0; i < n; i++ {
		data[n-1-i] = byte(value>>(7*uint(i))) & 0x7f
	}
}

// PackedSize returns the size in bytes of the 7-bit-safe packed
// representation of srcLen raw bytes: groups of 7 input bytes followed by
// one high-bit byte, with a short final group.
func PackedSize(srcLen int) int {
	if srcLen == 0 {
		return 0
	}
	groups := (srcLen + 6) / 7
	size := groups * 8
	if rem := srcLen % 7; rem != 0 {
		size -= 7 - rem
	}
	return size
}

// Pack groups src into runs of 7 bytes followed by one "high-bit" byte
// whose bit j carries the high bit of input byte j, so that the result is
// safe to transmit as MIDI data bytes (each <= 0x7f).
func Pack(src []byte) []byte {
	out := make([]byte, 0, PackedSize(len(src)))
	for i := 0; i < len(src); i += 7 {
		end := i + 7
		if end > len(src) {
			end = len(src)
		}
		chunk := src[i:end]
		var high byte
		packed := make([]byte, len(chunk))
		for j, b := range chunk {
			packed[j] = b & 0x7f
			if b&0x80 != 0 {
				high |= 1 << uint(j)
			}
		}
		out = append(out, packed...)
		out = append(out, high)
	}
	return out
}

// Unpack is the inverse of Pack: for every run of up to 7 data bytes plus
// one trailing high-bit byte, restores the original 8-bit bytes.
func Unpack(src []byte, dstLen int) []byte {
	out := make([]byte, 0, dstLen)
	for i := 0; i < len(src) && len(out) < dstLen; i += 8 {
		end := i + 8
		if end > len(src) {
			end = len(src)
		}
		group := src[i:end]
		if len(group) < 2 {
			break
		}
		data := group[:len(group)-1]
		high := group[len(group)-1]
		for j, b := range data {
			if len(out) >= dstLen {
				break
			}
			v := b & 0x7f
			if high&(1<<uint(j)) != 0 {
				v |= 0x80
			}
			out = append(out, v)
		}
	}
	return out
}

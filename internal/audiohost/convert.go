package audiohost

import "unsafe"

// toByteFloat32View reinterprets a malgo output byte buffer as a
// float32 slice so the playback callback can write samples directly
// into device memory without an intermediate copy.
func toByteFloat32View(b []byte) []float32 {
	if len(b) < bytesPerFloat32 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/bytesPerFloat32)
}

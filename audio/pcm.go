package audio

import "encoding/binary"

// Int16ToBytes packs int16 samples into little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 unpacks little-endian PCM bytes into int16 samples. A trailing
// odd byte is dropped.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// Float32ToPCM16 converts normalized float samples to 16-bit PCM bytes,
// clipping to [-1, 1] before scaling. Loopback capture hands back float frames
// and this is the only conversion point on that boundary.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		v := int16(f * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit PCM bytes to normalized float samples. The
// whisper bindings take float input.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return out
}

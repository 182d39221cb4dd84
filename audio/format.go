package audio

// Fixed capture format shared by every producer and the transcription models.
// All pipelines speak mono 16-bit signed little-endian PCM at 16 kHz; chunks
// carry a nominal 1024 samples except a file's final chunk, which may be short.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8

	ChunkSamples = 1024
	ChunkBytes   = ChunkSamples * BytesPerSample

	BytesPerSecond = SampleRate * BytesPerSample
)

// Duration converts a PCM byte count into seconds of audio.
func Duration(numBytes int) float64 {
	return float64(numBytes) / float64(BytesPerSecond)
}

// BytesForDuration returns the PCM byte count covering the given number of
// seconds, rounded down to a whole sample.
func BytesForDuration(seconds float64) int {
	n := int(seconds * float64(BytesPerSecond))
	return n - n%BytesPerSample
}

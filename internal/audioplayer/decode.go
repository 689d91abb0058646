package audioplayer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// pcmFormat is the (sample_rate, channels) pair the worker renegotiates its
// output stream around; the sample format is always 16-bit. go-mp3 always
// decodes to 16-bit stereo, so channels is fixed; sample rate is the only
// field that varies blob to blob.
type pcmFormat struct {
	sampleRate int
	channels   int
}

// decodedAudio is one blob's PCM bytes (interleaved 16-bit little-endian)
// plus the format it was decoded at.
type decodedAudio struct {
	pcm    []byte
	format pcmFormat
}

// decodeMP3 decodes an MP3-framed blob fully into PCM. One blob is one
// complete in-memory buffer; the decoder is never streamed across blobs.
func decodeMP3(blob []byte) (decodedAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(blob))
	if err != nil {
		return decodedAudio{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return decodedAudio{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return decodedAudio{
		pcm:    pcm,
		format: pcmFormat{sampleRate: dec.SampleRate(), channels: 2},
	}, nil
}

// applyFade applies a short linear fade-in and fade-out to interleaved
// 16-bit stereo PCM, masking the audible discontinuity at stream
// renegotiation and chunk boundaries. durationFrames is clamped to half the
// buffer's frame count so a very short blob still fades cleanly.
func applyFade(pcm []byte, channels int, durationFrames int) []byte {
	const bytesPerSample = 2
	frameSize := bytesPerSample * channels
	if frameSize == 0 || len(pcm) < frameSize {
		return pcm
	}
	totalFrames := len(pcm) / frameSize
	fadeFrames := durationFrames
	if fadeFrames > totalFrames/2 {
		fadeFrames = totalFrames / 2
	}
	if fadeFrames <= 0 {
		return pcm
	}

	out := make([]byte, len(pcm))
	copy(out, pcm)

	for i := 0; i < fadeFrames; i++ {
		gain := float64(i) / float64(fadeFrames)
		scaleFrame(out, i, frameSize, gain)
		scaleFrame(out, totalFrames-1-i, frameSize, gain)
	}
	return out
}

func scaleFrame(pcm []byte, frame, frameSize int, gain float64) {
	base := frame * frameSize
	for s := 0; s+1 < frameSize; s += 2 {
		off := base + s
		sample := int16(pcm[off]) | int16(pcm[off+1])<<8
		scaled := int16(float64(sample) * gain)
		pcm[off] = byte(scaled)
		pcm[off+1] = byte(scaled >> 8)
	}
}

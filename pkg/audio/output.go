package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// Renderer is anything that fills stereo frames
type Renderer interface {
	Render(left, right []float32)
}

// AudioReader implements io.Reader over a Renderer, producing interleaved
// stereo float32 little-endian frames.
type AudioReader struct {
	source      Renderer
	left, right []float32
}

// NewAudioReader creates an io.Reader that pulls frames from source
func NewAudioReader(source Renderer) *AudioReader {
	return &AudioReader{source: source}
}

// Read fills p with whole frames; a trailing partial frame is left unused
func (ar *AudioReader) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if cap(ar.left) < frames {
		ar.left = make([]float32, frames)
		ar.right = make([]float32, frames)
	}
	left, right := ar.left[:frames], ar.right[:frames]
	ar.source.Render(left, right)

	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(right[i]))
	}
	return frames * 8, nil
}

// NoteEvent is a timed note for offline rendering
type NoteEvent struct {
	At        float64 // Seconds from the start of the render
	ID        string
	Frequency float64 // Ignored for note offs
	Off       bool
}

// wavChunkFrames is how many frames are rendered per encoder write
const wavChunkFrames = 4096

// RenderWAV renders seconds of audio to a 16-bit stereo WAV, playing the
// events at their times.
func RenderWAV(e *Engine, w io.WriteSeeker, seconds float64, events ...NoteEvent) error {
	if !finite(seconds) || seconds <= 0 {
		return fmt.Errorf("render length must be positive, got %v", seconds)
	}
	sampleRate := e.SampleRate()
	totalFrames := int(math.Round(seconds * float64(sampleRate)))

	score := append([]NoteEvent(nil), events...)
	sort.SliceStable(score, func(i, j int) bool { return score[i].At < score[j].At })

	e.Init()
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	left := make([]float32, wavChunkFrames)
	right := make([]float32, wavChunkFrames)

	next := 0
	for written := 0; written < totalFrames; {
		// Fire every event due at this frame
		for next < len(score) && eventFrame(score[next], sampleRate) <= written {
			playEvent(e, score[next])
			next++
		}

		chunk := min(wavChunkFrames, totalFrames-written)
		if next < len(score) {
			chunk = min(chunk, eventFrame(score[next], sampleRate)-written)
		}
		e.Render(left[:chunk], right[:chunk])

		buf.Data = buf.Data[:0]
		for i := 0; i < chunk; i++ {
			buf.Data = append(buf.Data, toPCM16(left[i]), toPCM16(right[i]))
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write WAV data: %w", err)
		}
		written += chunk
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "RenderWAV",
		"seconds":  seconds,
		"frames":   totalFrames,
		"events":   len(score),
	}).Info("Offline render complete")
	return nil
}

func eventFrame(ev NoteEvent, sampleRate int) int {
	return int(math.Round(ev.At * float64(sampleRate)))
}

func playEvent(e *Engine, ev NoteEvent) {
	if ev.Off {
		e.NoteOff(ev.ID)
		return
	}
	e.NoteOn(ev.ID, ev.Frequency)
}

func toPCM16(s float32) int {
	v := math.Max(-1, math.Min(1, float64(s)))
	return int(v * 32767)
}

package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// RealtimeOutput plays an engine on the default audio device
type RealtimeOutput struct {
	otoCtx    *oto.Context
	otoPlayer *oto.Player

	mu     sync.Mutex
	closed bool
}

// NewRealtimeOutput opens the audio device and prepares a suspended player
// that pulls from engine. Attach it to the engine; Init starts playback.
func NewRealtimeOutput(engine *Engine) (*RealtimeOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   engine.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	rt := &RealtimeOutput{otoCtx: otoCtx}
	rt.otoPlayer = otoCtx.NewPlayer(NewAudioReader(engine))
	// 50ms of stereo float32
	rt.otoPlayer.SetBufferSize(engine.SampleRate() / 20 * 8)

	logrus.WithFields(logrus.Fields{
		"function":    "NewRealtimeOutput",
		"sample_rate": engine.SampleRate(),
	}).Info("Audio device opened")
	return rt, nil
}

// Resume starts pulling frames
func (rt *RealtimeOutput) Resume() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return fmt.Errorf("audio output is closed")
	}
	rt.otoPlayer.Play()
	return rt.otoPlayer.Err()
}

// Suspended reports whether the player is not pulling frames
func (rt *RealtimeOutput) Suspended() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return !rt.closed && !rt.otoPlayer.IsPlaying()
}

// Close stops the audio output
func (rt *RealtimeOutput) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.closed = true
	return rt.otoPlayer.Close()
}

package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/oisee/wavesynth/pkg/patch"
)

// ErrNotFound is returned when no preset matches an id or name
var ErrNotFound = errors.New("preset not found")

// File is the on-disk layout of a preset bank
type File struct {
	Presets []patch.Preset `yaml:"presets"`
}

// Load decodes a preset bank and brings every value into range
func Load(r io.Reader) ([]patch.Preset, error) {
	var f File
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode presets: %w", err)
	}
	for i := range f.Presets {
		f.Presets[i] = Sanitize(f.Presets[i])
	}
	return f.Presets, nil
}

// Save encodes presets as a preset bank
func Save(w io.Writer, presets []patch.Preset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{Presets: presets}); err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush presets: %w", err)
	}
	return nil
}

// LoadFile reads a preset bank from path
func LoadFile(path string) ([]patch.Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preset file: %w", err)
	}
	defer f.Close()

	presets, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "LoadFile",
		"path":     path,
		"count":    len(presets),
	}).Info("Loaded preset file")
	return presets, nil
}

// SaveFile writes presets to path, replacing it
func SaveFile(path string, presets []patch.Preset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preset file: %w", err)
	}
	if err := Save(f, presets); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close preset file: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "SaveFile",
		"path":     path,
		"count":    len(presets),
	}).Info("Saved preset file")
	return nil
}

// Find returns a copy of the preset whose id or name matches key,
// ignoring case.
func Find(presets []patch.Preset, key string) (patch.Preset, error) {
	for _, p := range presets {
		if strings.EqualFold(p.ID, key) || strings.EqualFold(p.Name, key) {
			return p.Clone(), nil
		}
	}
	return patch.Preset{}, fmt.Errorf("%q: %w", key, ErrNotFound)
}

// UserPreset names a captured patch the way saved presets are named
func UserPreset(p patch.Preset, bankSize int, now time.Time) patch.Preset {
	p = p.Clone()
	p.ID = fmt.Sprintf("custom-%d", now.UnixMilli())
	p.Name = fmt.Sprintf("USER %d", bankSize+1)
	return p
}

// Sanitize clamps every field of p into range and fills the gaps a
// hand-written file may leave.
func Sanitize(p patch.Preset) patch.Preset {
	p = p.Clone()
	for i := range p.Oscillators {
		o := &p.Oscillators[i]
		o.ID = i
		if o.Label == "" {
			o.Label = patch.SlotLabel(i)
		}
		o.Volume = patch.ClampPercent(o.Volume)
		o.Detune = patch.Clamp(o.Detune, -patch.MaxFineDetune, patch.MaxFineDetune)
		o.Octave = patch.ClampInt(o.Octave, patch.MinOctave, patch.MaxOctave)
		if o.Unison == (patch.UnisonConfig{}) {
			o.Unison = patch.DefaultUnison()
		}
		o.Unison = o.Unison.Clamped()
		for j, v := range o.Samples {
			o.Samples[j] = patch.Clamp(v, -1, 1)
		}
	}
	p.Envelope.Attack = patch.Clamp(p.Envelope.Attack, 0, 10)
	p.Envelope.Release = patch.Clamp(p.Envelope.Release, 0, 10)
	p.Envelope.MasterVolume = patch.ClampPercent(p.Envelope.MasterVolume)
	if p.Filter == (patch.FilterSettings{}) {
		p.Filter = patch.FilterOpen
	}
	if !p.Filter.Type.Valid() {
		p.Filter.Type = patch.Lowpass
	}
	p.Filter.Cutoff = patch.Clamp(p.Filter.Cutoff, 0, 1)
	p.Filter.Resonance = patch.ClampPercent(p.Filter.Resonance)
	p.FX.DelayTime = patch.Clamp(p.FX.DelayTime, 0, patch.MaxDelayTime)
	p.FX.DelayFeedback = patch.ClampPercent(p.FX.DelayFeedback)
	p.FX.ReverbSize = patch.Clamp(p.FX.ReverbSize, 0, patch.MaxReverbSize)
	p.FX.DelayMix = patch.ClampPercent(p.FX.DelayMix)
	p.FX.ReverbMix = patch.ClampPercent(p.FX.ReverbMix)
	p.FX.DelaySyncIndex = patch.ClampInt(p.FX.DelaySyncIndex, 0, len(patch.SyncOptions)-1)
	return p
}

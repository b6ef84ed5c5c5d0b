package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oisee/wavesynth/pkg/patch"
)

func TestLibrary(t *testing.T) {
	lib := Library()
	require.Len(t, lib, 12)

	seen := map[string]bool{}
	for _, p := range lib {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.Equal(t, p, Sanitize(p), "%s is not in range", p.ID)
		for slot, o := range p.Oscillators {
			assert.Equal(t, slot, o.ID)
			assert.Len(t, o.Samples, patch.WaveSamples, "%s slot %d", p.ID, slot)
		}
	}
	assert.Equal(t, "init-sine", lib[0].ID)
}

func TestLibraryIsDeterministic(t *testing.T) {
	a, b := Library(), Library()
	assert.Equal(t, a, b)

	// Fresh copies: editing one never leaks into the next call
	a[0].Oscillators[0].Samples[0] = 0.7
	assert.Equal(t, 0.0, Library()[0].Oscillators[0].Samples[0])
}

func TestDarkDroneUsesFifthUnison(t *testing.T) {
	p, err := Find(Library(), "DARK DRONE")
	require.NoError(t, err)

	u := p.Oscillators[0].Unison
	assert.Equal(t, patch.UnisonFifth, u.Mode)
	assert.Equal(t, 3, u.Voices)
	assert.Equal(t, -1, p.Oscillators[0].Octave)
}

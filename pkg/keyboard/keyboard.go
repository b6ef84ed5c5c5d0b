// Package keyboard maps a computer keyboard onto piano notes
package keyboard

import "math"

// Transpose limits, in octaves
const (
	MinTranspose = -3
	MaxTranspose = 3
)

// Key is one playable key
type Key struct {
	Name  string // e.g. "C#4"
	Char  string // Keyboard key, also used as the note id
	Pitch int    // MIDI note number
	Black bool
}

// Two rows: Z..M plays C4-B4, Q..P plays C5-E6
var Keys = []Key{
	{"C4", "z", 60, false}, {"C#4", "s", 61, true}, {"D4", "x", 62, false},
	{"D#4", "d", 63, true}, {"E4", "c", 64, false}, {"F4", "v", 65, false},
	{"F#4", "g", 66, true}, {"G4", "b", 67, false}, {"G#4", "h", 68, true},
	{"A4", "n", 69, false}, {"A#4", "j", 70, true}, {"B4", "m", 71, false},

	{"C5", "q", 72, false}, {"C#5", "2", 73, true}, {"D5", "w", 74, false},
	{"D#5", "3", 75, true}, {"E5", "e", 76, false}, {"F5", "r", 77, false},
	{"F#5", "5", 78, true}, {"G5", "t", 79, false}, {"G#5", "6", 80, true},
	{"A5", "y", 81, false}, {"A#5", "7", 82, true}, {"B5", "u", 83, false},

	{"C6", "i", 84, false}, {"C#6", "9", 85, true}, {"D6", "o", 86, false},
	{"D#6", "0", 87, true}, {"E6", "p", 88, false},
}

var byChar = func() map[string]Key {
	m := make(map[string]Key, len(Keys))
	for _, k := range Keys {
		m[k.Char] = k
	}
	return m
}()

// Lookup returns the key bound to a keyboard character
func Lookup(char string) (Key, bool) {
	k, ok := byChar[char]
	return k, ok
}

// PitchToHz converts a MIDI note to equal-tempered Hz, A4 = 440
func PitchToHz(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// Frequency returns the key's pitch shifted by whole octaves
func (k Key) Frequency(transpose int) float64 {
	return PitchToHz(k.Pitch) * math.Pow(2, float64(transpose))
}

// PitchName converts a MIDI note to tracker-style text, e.g. "C-4", "F#5"
func PitchName(pitch int) string {
	if pitch < 0 {
		return "---"
	}
	names := []string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}
	octave := pitch/12 - 1
	if octave < 0 {
		return names[pitch%12] + "-"
	}
	return names[pitch%12] + string(rune('0'+octave%10))
}

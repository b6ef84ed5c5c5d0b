package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/oisee/wavesynth/pkg/audio"
	"github.com/oisee/wavesynth/pkg/keyboard"
	"github.com/oisee/wavesynth/pkg/patch"
	"github.com/oisee/wavesynth/pkg/preset"
	"github.com/oisee/wavesynth/pkg/tui"
	"github.com/oisee/wavesynth/pkg/wavemath"
)

type options struct {
	sampleRate  int
	seed        uint64
	presetName  string
	presetsFile string
	renderPath  string
	duration    float64
	logLevel    string
	logFile     string
	waveScript  string
	waveSlot    int
}

func main() {
	var opts options
	flag.IntVar(&opts.sampleRate, "rate", 44100, "Sample rate in Hz")
	flag.Uint64Var(&opts.seed, "seed", 0, "Random seed for reverb and unison jitter (0 = time based)")
	flag.StringVar(&opts.presetName, "preset", "", "Preset id or name to start with")
	flag.StringVar(&opts.presetsFile, "presets", "", "YAML preset bank to load; ctrl+s saves back to it")
	flag.StringVar(&opts.renderPath, "render", "", "Render a demo phrase to this WAV file instead of playing live")
	flag.Float64Var(&opts.duration, "duration", 6, "Length of the offline render in seconds")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.logFile, "log-file", "", "Write logs to this file (live mode discards logs by default)")
	flag.StringVar(&opts.waveScript, "wave-script", "", "Lua script defining wave(t, i) for one slot")
	flag.IntVar(&opts.waveSlot, "wave-slot", 0, "Slot (0-2) the wave script is loaded into")
	flag.Parse()

	interactive := opts.renderPath == ""
	if err := setupLogging(opts, interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(opts options, interactive bool) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logrus.SetOutput(f)
	case interactive:
		// The terminal belongs to the UI
		logrus.SetOutput(io.Discard)
	default:
		logrus.SetOutput(os.Stderr)
	}
	return nil
}

func run(opts options, interactive bool) error {
	presets := preset.Library()
	builtin := len(presets)
	if opts.presetsFile != "" {
		loaded, err := preset.LoadFile(opts.presetsFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"path":     opts.presetsFile,
			}).Info("Preset file does not exist yet, it will be created on save")
		case err != nil:
			return err
		default:
			presets = append(presets, loaded...)
		}
	}

	start := 0
	if opts.presetName != "" {
		p, err := preset.Find(presets, opts.presetName)
		if err != nil {
			return err
		}
		for i := range presets {
			if presets[i].ID == p.ID {
				start = i
				break
			}
		}
	}

	engine := audio.NewEngine(audio.Config{SampleRate: opts.sampleRate, Seed: opts.seed})
	engine.Init()
	defer engine.Shutdown()

	if interactive {
		return runLive(engine, presets, builtin, start, opts)
	}
	preset.Apply(engine, presets[start])
	if _, err := loadWaveScript(engine, opts); err != nil {
		return err
	}
	return renderDemo(engine, opts)
}

// loadWaveScript runs the -wave-script file and loads the result into
// -wave-slot. It returns nil samples when no script is set.
func loadWaveScript(engine *audio.Engine, opts options) ([]float64, error) {
	if opts.waveScript == "" {
		return nil, nil
	}
	if opts.waveSlot < 0 || opts.waveSlot >= patch.SlotCount {
		return nil, fmt.Errorf("wave slot must be 0-%d, got %d", patch.SlotCount-1, opts.waveSlot)
	}
	src, err := os.ReadFile(opts.waveScript)
	if err != nil {
		return nil, fmt.Errorf("failed to read wave script: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	samples, err := wavemath.FromLua(ctx, string(src))
	if err != nil {
		return nil, err
	}
	engine.UpdateWaveform(opts.waveSlot, samples)
	return samples, nil
}

func runLive(engine *audio.Engine, presets []patch.Preset, builtin, start int, opts options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("live mode needs a terminal; use -render to write a WAV file")
	}

	out, err := audio.NewRealtimeOutput(engine)
	if err != nil {
		return err
	}
	engine.AttachOutput(out)
	engine.Init()

	model := tui.NewModel(engine, presets)
	model.SavePath = opts.presetsFile
	model.Builtin = builtin
	model.LoadPreset(start)
	samples, err := loadWaveScript(engine, opts)
	if err != nil {
		return err
	}
	if samples != nil {
		model.Patch.Oscillators[opts.waveSlot].Samples = samples
	}

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// renderDemo plays a short arpeggio into a WAV file
func renderDemo(engine *audio.Engine, opts options) error {
	f, err := os.Create(opts.renderPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var events []audio.NoteEvent
	phrase := []string{"z", "c", "b", "q", "b", "c"}
	step := 0.4
	for i, char := range phrase {
		k, _ := keyboard.Lookup(char)
		at := float64(i) * step
		events = append(events,
			audio.NoteEvent{At: at, ID: k.Char, Frequency: k.Frequency(0)},
			audio.NoteEvent{At: at + step*0.9, ID: k.Char, Off: true},
		)
	}

	if err := audio.RenderWAV(engine, f, opts.duration, events...); err != nil {
		return err
	}
	fmt.Printf("Rendered %.1fs to %s\n", opts.duration, opts.renderPath)
	return nil
}

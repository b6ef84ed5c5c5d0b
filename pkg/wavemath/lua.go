package wavemath

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/oisee/wavesynth/pkg/patch"
)

// ErrScript is returned for scripts that fail to load or evaluate
var ErrScript = errors.New("wave script")

// FromLua evaluates a script that defines wave(t, i), where t is the cycle
// position in [0, 1) and i the sample index. The result is clipped to [-1, 1].
//
// Example:
//
//	function wave(t) return math.sin(2 * math.pi * t) ^ 3 end
func FromLua(ctx context.Context, script string) ([]float64, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}
	L.SetContext(ctx)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrScript, err)
	}
	fn, ok := L.GetGlobal("wave").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: script does not define function wave", ErrScript)
	}

	out := make([]float64, patch.WaveSamples)
	for i := range out {
		t := float64(i) / patch.WaveSamples
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(t), lua.LNumber(i)); err != nil {
			return nil, fmt.Errorf("%w: sample %d: %v", ErrScript, i, err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		n, ok := ret.(lua.LNumber)
		if !ok {
			return nil, fmt.Errorf("%w: sample %d: wave returned %s, want number", ErrScript, i, ret.Type())
		}
		v := float64(n)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = patch.Clamp(v, -1, 1)
	}

	logrus.WithFields(logrus.Fields{
		"function": "FromLua",
		"samples":  len(out),
	}).Debug("Generated waveform from script")
	return out, nil
}

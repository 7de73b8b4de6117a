package client

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcmFrame(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestLevelSilence(t *testing.T) {
	assert.Zero(t, Level(pcmFrame(0, 0, 0, 0)))
}

func TestLevelEmptyFrame(t *testing.T) {
	assert.Zero(t, Level(nil))
	assert.Zero(t, Level([]byte{0x01}))
}

func TestLevelFullScale(t *testing.T) {
	lvl := Level(pcmFrame(-32768, -32768))
	assert.InDelta(t, 1.0, lvl, 1e-9)
}

func TestLevelMidScale(t *testing.T) {
	lvl := Level(pcmFrame(16384, -16384))
	assert.InDelta(t, 0.5, lvl, 1e-3)
}

func TestLevelMonotonicInAmplitude(t *testing.T) {
	quiet := Level(pcmFrame(100, -100, 100, -100))
	loud := Level(pcmFrame(10000, -10000, 10000, -10000))
	assert.Greater(t, loud, quiet)
}

package ui

import (
	"encoding/binary"

	"gbemu/internal/emu"
)

// spuStream implements io.Reader by pulling finished sample buffers from the
// SPU and converting them to 16-bit little-endian stereo frames. When no
// buffer is ready it emits a short run of silence instead of blocking the
// audio pipeline; back-pressure on the emulation side comes from the SPU's
// own buffer hand-off.
type spuStream struct {
	spu *emu.SPU

	buffer [emu.SampleBufferLength][2]int16
	// frames of buffer already handed to the player; SampleBufferLength
	// means the buffer is spent
	offset int

	underruns int
}

func newSPUStream(spu *emu.SPU) *spuStream {
	return &spuStream{spu: spu, offset: emu.SampleBufferLength}
}

func (s *spuStream) Read(p []byte) (int, error) {
	// each stereo frame is 4 bytes
	if len(p) < 4 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := 0
	for n+4 <= len(p) {
		if s.offset >= emu.SampleBufferLength {
			if !s.spu.TryConsume(&s.buffer) {
				break
			}
			s.offset = 0
		}

		frame := &s.buffer[s.offset]
		binary.LittleEndian.PutUint16(p[n:], uint16(frame[0]))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(frame[1]))
		s.offset++
		n += 4
	}

	if n == 0 {
		// nothing buffered: return a small silence chunk so the player
		// doesn't stall
		silence := 256 * 4
		if silence > len(p) {
			silence = len(p) &^ 3
		}
		for i := 0; i < silence; i++ {
			p[i] = 0
		}
		s.underruns++
		return silence, nil
	}

	return n, nil
}

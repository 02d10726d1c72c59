package emu

// The SPU produces one stereo frame every 64 T-states (65536 Hz at base
// clock) into two ping-pong buffers shared with the host audio thread. The
// free/ready channel pair per buffer reproduces the classic two-semaphore
// hand-off: the producer blocks on free before touching a buffer and posts
// ready when it's full; the consumer try-receives ready and posts free once
// it has copied the samples out. Audio back-pressure is what keeps emulation
// time aligned with wall-clock playback.
const (
	spuSampleRateDivisor = 64
	// SampleRate is the output rate of the SPU in Hz.
	SampleRate = CPUFrequency / spuSampleRateDivisor
	// SampleBufferLength is the number of stereo frames per buffer.
	SampleBufferLength = 2048
	sampleBufferCount  = 2

	nr3RAMSize = 16

	nr1T1Max = 0x3F
	nr2T1Max = 0x3F
	nr3T1Max = 0xFF
	nr4T1Max = 0x3F

	spuPhases = 16
)

// SampleBuffer is one shared buffer of interleaved stereo frames.
type SampleBuffer struct {
	Samples [SampleBufferLength][2]int16

	free  chan struct{} // consumer handed the buffer back
	ready chan struct{} // producer filled the buffer
}

// spuDuration gates a channel: when enabled it counts down and stops the
// channel at zero.
type spuDuration struct {
	enable  bool
	counter uint32
}

// spuDivider is the 11-bit frequency divider; the period is
// 2 * (0x800 - offset) cycles.
type spuDivider struct {
	offset  uint16
	counter uint32
}

func (f *spuDivider) reload() {
	f.counter = 2 * (0x800 - uint32(f.offset))
}

// update runs the divider and returns how many times it elapsed.
func (f *spuDivider) update(cycles uint32) uint32 {
	count := uint32(0)

	for cycles > 0 {
		if f.counter > cycles {
			f.counter -= cycles
			cycles = 0
		} else {
			count++
			cycles -= f.counter
			f.reload()
		}
	}

	return count
}

// spuSweep shifts the channel-1 frequency up or down every
// time * 32768 cycles.
type spuSweep struct {
	divider  spuDivider
	shift    byte
	subtract bool
	time     byte // 0 disables the sweep
	counter  uint32
}

func (s *spuSweep) reload(config byte) {
	s.shift = config & 0x7
	s.subtract = config>>3&1 != 0
	s.time = config >> 4 & 0x7
	s.counter = 0x8000 * uint32(s.time)
}

// update steps the sweep and the divider together, since the frequency
// changes underneath the divider. It reports the divider count and whether
// an additive overflow disabled the channel.
func (s *spuSweep) update(cycles uint32) (count uint32, disable bool) {
	if s.time == 0 {
		return s.divider.update(cycles), false
	}

	for cycles > 0 {
		toRun := cycles
		if s.counter < toRun {
			toRun = s.counter
		}
		if s.divider.counter < toRun {
			toRun = s.divider.counter
		}

		s.counter -= toRun
		if s.counter == 0 {
			delta := s.divider.offset >> s.shift

			if s.subtract {
				if s.shift != 0 && delta <= s.divider.offset {
					s.divider.offset -= delta
				}
			} else {
				offset := uint32(s.divider.offset) + uint32(delta)
				if offset > 0x7FF {
					return count, true
				}
				s.divider.offset = uint16(offset)
			}

			s.counter = 0x8000 * uint32(s.time)
		}

		count += s.divider.update(toRun)
		cycles -= toRun
	}

	return count, false
}

// spuRectangleWave steps through a 16-phase duty pattern.
type spuRectangleWave struct {
	phase     byte
	dutyCycle byte // 1/8, 1/4, 1/2, 3/4
}

var spuWaveforms = [4][spuPhases / 2]byte{
	{1, 0, 0, 0, 0, 0, 0, 0}, // 1/8
	{1, 1, 0, 0, 0, 0, 0, 0}, // 1/4
	{1, 1, 1, 1, 0, 0, 0, 0}, // 1/2
	{1, 1, 1, 1, 1, 1, 0, 0}, // 3/4
}

func (w *spuRectangleWave) nextSample(phaseSteps uint32) byte {
	w.phase = byte((uint32(w.phase) + phaseSteps) % spuPhases)
	return spuWaveforms[w.dutyCycle][w.phase/2]
}

// spuEnvelope ramps the 4-bit volume up or down every
// stepDuration * 0x10000 cycles.
type spuEnvelope struct {
	stepDuration byte // 0 stops the envelope
	value        byte
	increment    bool
	counter      uint32
}

func (e *spuEnvelope) reloadCounter() {
	e.counter = uint32(e.stepDuration) * 0x10000
}

func (e *spuEnvelope) init(config byte) {
	e.value = config >> 4
	e.increment = config&8 != 0
	e.stepDuration = config & 7
	e.reloadCounter()
}

// active reports whether the envelope can still produce output: a zero value
// set to decrement is dead.
func (e *spuEnvelope) active() bool {
	return e.value != 0 || e.increment
}

// update runs the envelope; it returns true when the envelope reached an
// inactive state and the channel should stop.
func (e *spuEnvelope) update(cycles uint32) bool {
	if e.stepDuration != 0 {
		for cycles > 0 {
			if e.counter > cycles {
				e.counter -= cycles
				cycles = 0
			} else {
				cycles -= e.counter

				if e.increment {
					if e.value < 0xF {
						e.value++
					}
				} else if e.value > 0 {
					e.value--
				}

				e.reloadCounter()
			}
		}
	}

	return !e.active()
}

// updateDuration runs a duration counter; it returns true when the counter
// elapsed and the channel should stop.
func updateDuration(d *spuDuration, durationMax uint32, cycles uint32) bool {
	elapsed := false

	if !d.enable {
		return false
	}

	for cycles > 0 {
		if d.counter > cycles {
			d.counter -= cycles
			cycles = 0
		} else {
			elapsed = true
			cycles -= d.counter
			reloadDuration(d, durationMax, 0)
		}
	}

	return elapsed
}

func reloadDuration(d *spuDuration, durationMax uint32, t1 byte) {
	d.counter = (durationMax + 1 - uint32(t1)) * 0x4000
}

// Sound 1: rectangle wave with envelope and frequency sweep.
type spuNR1 struct {
	running        bool
	duration       spuDuration
	sweep          spuSweep
	wave           spuRectangleWave
	envelopeConfig byte
	envelope       spuEnvelope
}

// Sound 2: rectangle wave with envelope.
type spuNR2 struct {
	running        bool
	duration       spuDuration
	divider        spuDivider
	wave           spuRectangleWave
	envelopeConfig byte
	envelope       spuEnvelope
}

// Sound 3: user-defined waveform.
type spuNR3 struct {
	enable      bool
	running     bool
	duration    spuDuration
	t1          byte
	divider     spuDivider
	volumeShift byte // 0 mute, 1 full, 2 half, 3 quarter
	ram         [nr3RAMSize]byte
	index       byte
}

// Sound 4: LFSR noise with envelope.
type spuNR4 struct {
	running        bool
	duration       spuDuration
	envelopeConfig byte
	envelope       spuEnvelope
	lfsr           uint16
	lfsrConfig     byte // NR43
	counter        uint32
}

func (nr4 *spuNR4) reloadLFSRCounter() {
	div := uint32(nr4.lfsrConfig & 7)
	shift := nr4.lfsrConfig>>4 + 1

	if div == 0 {
		nr4.counter = 4
	} else {
		nr4.counter = 8 * div
	}
	nr4.counter <<= shift
}

// lfsrStep shifts the register: the XOR of the two low bits goes into bit
// 14, and also into bit 6 in 7-bit mode.
func (nr4 *spuNR4) lfsrStep() {
	shifted := nr4.lfsr >> 1
	carry := (nr4.lfsr ^ shifted) & 1

	nr4.lfsr = shifted | carry<<14

	if nr4.lfsrConfig&0x8 != 0 {
		nr4.lfsr = nr4.lfsr&^(1<<6) | carry<<6
	}
}

// SPU is the four-channel sound unit. Everything but the sample buffers is
// owned by the CPU goroutine.
type SPU struct {
	enable       bool
	samplePeriod int32 // carried remainder below one sample period
	outputLevel  byte  // NR50
	soundMux     byte  // NR51
	// per sound, per stereo side amplification derived from NR50/NR51
	soundAmp [4][2]int16

	nr1 spuNR1
	nr2 spuNR2
	nr3 spuNR3
	nr4 spuNR4

	buffers       [sampleBufferCount]SampleBuffer
	bufferIndex   int // buffer currently being filled
	sampleIndex   int // position within the current buffer
	consumerIndex int // buffer the audio thread reads next; audio-side only
}

type spuState = SPU

// updateSoundAmp recomputes the per-sound stereo amplification factors so
// that four sounds at full envelope and full output level saturate int16.
func (gb *GameBoy) updateSoundAmp() {
	spu := &gb.spu

	// each sound generates 4-bit values, amplified up to 8x, four sounds
	// summed
	const maxAmplitude = 15 * 8 * 4
	const scaling = 0x7FFF / maxAmplitude

	for sound := 0; sound < 4; sound++ {
		for channel := 0; channel < 2; channel++ {
			var amp int16
			if spu.soundMux&(1<<(uint(sound)+uint(channel)*4)) != 0 {
				amp = 1 + int16(spu.outputLevel>>(uint(channel)*4)&7)
				amp *= scaling
			}
			spu.soundAmp[sound][channel] = amp
		}
	}
}

func (gb *GameBoy) resetSPU() {
	spu := &gb.spu

	// the buffer hand-off state survives resets: each buffer starts with one
	// ready token so the consumer's first callback delivers silence
	for i := range spu.buffers {
		b := &spu.buffers[i]
		if b.free == nil {
			b.free = make(chan struct{}, 1)
			b.ready = make(chan struct{}, 1)
			b.ready <- struct{}{}
		}
	}

	spu.enable = true
	spu.outputLevel = 0
	spu.soundMux = 0
	gb.updateSoundAmp()

	spu.nr1 = spuNR1{}
	spu.nr1.sweep.divider.reload()
	spu.nr1.sweep.reload(0)

	spu.nr2 = spuNR2{}
	spu.nr2.divider.reload()

	ram := spu.nr3.ram
	spu.nr3 = spuNR3{ram: ram}
	spu.nr3.divider.reload()

	spu.nr4 = spuNR4{lfsr: 0x7FFF}
}

func (gb *GameBoy) nextNR1Sample(cycles uint32) byte {
	nr1 := &gb.spu.nr1

	// the duration counter runs even while the sound is stopped
	if updateDuration(&nr1.duration, nr1T1Max, cycles) {
		nr1.running = false
	}
	if !nr1.running {
		return 0
	}

	if nr1.envelope.update(cycles) {
		nr1.running = false
		return 0
	}

	soundCycles, disable := nr1.sweep.update(cycles)
	if disable {
		nr1.running = false
		return 0
	}

	return nr1.wave.nextSample(soundCycles) * nr1.envelope.value
}

func (gb *GameBoy) nextNR2Sample(cycles uint32) byte {
	nr2 := &gb.spu.nr2

	if updateDuration(&nr2.duration, nr2T1Max, cycles) {
		nr2.running = false
	}
	if !nr2.running {
		return 0
	}

	if nr2.envelope.update(cycles) {
		nr2.running = false
		return 0
	}

	soundCycles := nr2.divider.update(cycles)

	return nr2.wave.nextSample(soundCycles) * nr2.envelope.value
}

func (gb *GameBoy) nextNR3Sample(cycles uint32) byte {
	nr3 := &gb.spu.nr3

	if updateDuration(&nr3.duration, nr3T1Max, cycles) {
		nr3.running = false
	}
	if !nr3.running {
		return 0
	}

	soundCycles := nr3.divider.update(cycles)
	nr3.index = byte((uint32(nr3.index) + soundCycles) % (nr3RAMSize * 2))

	if nr3.volumeShift == 0 {
		return 0
	}

	// two samples per byte, high nibble first
	sample := nr3.ram[nr3.index/2]
	if nr3.index&1 != 0 {
		sample &= 0xF
	} else {
		sample >>= 4
	}

	return sample >> (nr3.volumeShift - 1)
}

func (gb *GameBoy) nextNR4Sample(cycles uint32) byte {
	nr4 := &gb.spu.nr4

	if updateDuration(&nr4.duration, nr4T1Max, cycles) {
		nr4.running = false
	}
	if !nr4.running {
		return 0
	}

	if nr4.envelope.update(cycles) {
		nr4.running = false
		return 0
	}

	for cycles > 0 {
		if nr4.counter > cycles {
			nr4.counter -= cycles
			cycles = 0
		} else {
			cycles -= nr4.counter
			nr4.reloadLFSRCounter()
			nr4.lfsrStep()
		}
	}

	// output is the envelope value gated by the LFSR's LSB
	return byte(nr4.lfsr&1) * nr4.envelope.value
}

// sendSampleToUI pushes one stereo frame into the active buffer, handing
// full buffers to the consumer and blocking until the next one is free.
func (gb *GameBoy) sendSampleToUI(left, right int16) {
	spu := &gb.spu
	buffer := &spu.buffers[spu.bufferIndex]

	if spu.sampleIndex == 0 {
		<-buffer.free
	}

	buffer.Samples[spu.sampleIndex][0] = left
	buffer.Samples[spu.sampleIndex][1] = right
	spu.sampleIndex++

	if spu.sampleIndex == SampleBufferLength {
		buffer.ready <- struct{}{}

		spu.bufferIndex = (spu.bufferIndex + 1) % sampleBufferCount
		spu.sampleIndex = 0
	}
}

// syncSPU generates every sample whose period has elapsed since the last
// catch-up, then schedules the next sync for when the current UI buffer
// would be complete.
func (gb *GameBoy) syncSPU() {
	spu := &gb.spu
	elapsed := gb.resync(syncSPU)
	period := spu.samplePeriod

	elapsed += period

	for nsamples := elapsed / spuSampleRateDivisor; nsamples > 0; nsamples-- {
		delay := uint32(spuSampleRateDivisor - period)

		samples := [4]int16{
			int16(gb.nextNR1Sample(delay)),
			int16(gb.nextNR2Sample(delay)),
			int16(gb.nextNR3Sample(delay)),
			int16(gb.nextNR4Sample(delay)),
		}

		var left, right int16
		for sound := range samples {
			left += samples[sound] * spu.soundAmp[sound][0]
			right += samples[sound] * spu.soundAmp[sound][1]
		}

		gb.sendSampleToUI(left, right)

		period = 0
	}

	period = elapsed % spuSampleRateDivisor

	// advance the channels through the remainder so the running flags stay
	// correct even between sample points
	gb.nextNR1Sample(uint32(period))
	gb.nextNR2Sample(uint32(period))
	gb.nextNR3Sample(uint32(period))
	gb.nextNR4Sample(uint32(period))

	spu.samplePeriod = period

	nextSync := int32(SampleBufferLength-spu.sampleIndex) * spuSampleRateDivisor
	nextSync -= period

	gb.scheduleSync(syncSPU, nextSync)
}

func (gb *GameBoy) startNR1() {
	nr1 := &gb.spu.nr1

	nr1.wave.phase = 0
	nr1.sweep.divider.reload()
	nr1.envelope.init(nr1.envelopeConfig)

	nr1.running = nr1.envelope.active()
}

func (gb *GameBoy) startNR2() {
	nr2 := &gb.spu.nr2

	nr2.wave.phase = 0
	nr2.divider.reload()
	nr2.envelope.init(nr2.envelopeConfig)

	nr2.running = nr2.envelope.active()
}

func (gb *GameBoy) startNR3() {
	nr3 := &gb.spu.nr3

	if !nr3.enable {
		return
	}

	nr3.index = 0
	nr3.running = true
	nr3.divider.reload()
}

func (gb *GameBoy) startNR4() {
	nr4 := &gb.spu.nr4

	nr4.envelope.init(nr4.envelopeConfig)
	nr4.reloadLFSRCounter()

	nr4.running = true
}

// TryConsume copies the next ready sample buffer into dst and hands the
// buffer back to the producer. It returns false without blocking when no
// buffer is ready; the caller should emit silence. Only the audio thread
// may call this.
func (s *SPU) TryConsume(dst *[SampleBufferLength][2]int16) bool {
	buffer := &s.buffers[s.consumerIndex]

	select {
	case <-buffer.ready:
	default:
		return false
	}

	*dst = buffer.Samples
	buffer.free <- struct{}{}
	s.consumerIndex = (s.consumerIndex + 1) % sampleBufferCount

	return true
}

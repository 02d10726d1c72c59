package emu

import "testing"

func TestEnvelopeStopDisablesChannelOnStart(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR22, 0x00) // volume 0, decrement
	gb.writeBus(regNR24, 0x80) // trigger

	if gb.spu.nr2.running {
		t.Fatalf("channel must not run with a dead envelope")
	}
}

func TestChannelStartsWithLiveEnvelope(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR22, 0xF0) // volume 15, decrement
	gb.writeBus(regNR24, 0x80)

	if !gb.spu.nr2.running {
		t.Fatalf("channel must run")
	}
	if gb.spu.nr2.envelope.value != 0xF {
		t.Fatalf("envelope value got %X want F", gb.spu.nr2.envelope.value)
	}
}

func TestDurationStopsChannel(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR22, 0xF0)
	gb.writeBus(regNR21, 0x3F) // shortest duration: one 16384-cycle step
	gb.writeBus(regNR24, 0xC0) // trigger with the duration gate enabled

	if !gb.spu.nr2.running {
		t.Fatalf("channel must start")
	}

	gb.nextNR2Sample(0x4000)
	if gb.spu.nr2.running {
		t.Fatalf("duration must stop the channel")
	}
}

func TestFrequencyDividerPeriod(t *testing.T) {
	var f spuDivider
	f.offset = 0x700
	f.reload()

	// period = 2 * (0x800 - 0x700) = 0x200 cycles
	if count := f.update(0x1FF); count != 0 {
		t.Fatalf("divider elapsed early: %d", count)
	}
	if count := f.update(1); count != 1 {
		t.Fatalf("divider must elapse at the period boundary")
	}
	if count := f.update(0x400); count != 2 {
		t.Fatalf("two periods got %d want 2", count)
	}
}

func TestSweepOverflowDisablesChannel(t *testing.T) {
	var s spuSweep
	s.divider.offset = 0x7FF
	s.divider.reload()
	s.shift = 0
	s.subtract = false
	s.time = 1
	s.counter = 0x8000

	// the first sweep step adds offset>>0 and overflows past 0x7FF
	_, disable := s.update(0x8000)
	if !disable {
		t.Fatalf("additive overflow must disable the channel")
	}
}

func TestLFSRStep(t *testing.T) {
	nr4 := spuNR4{lfsr: 0x7FFF}

	// both low bits set: carry 0 shifts in
	nr4.lfsrStep()
	if nr4.lfsr != 0x3FFF {
		t.Fatalf("lfsr got %04X want 3FFF", nr4.lfsr)
	}

	nr4.lfsr = 0x0001
	nr4.lfsrStep()
	// carry = 1^0 = 1 lands in bit 14
	if nr4.lfsr != 0x4000 {
		t.Fatalf("lfsr got %04X want 4000", nr4.lfsr)
	}
}

func TestLFSRSevenBitMode(t *testing.T) {
	nr4 := spuNR4{lfsr: 0x0001, lfsrConfig: 0x08}

	nr4.lfsrStep()
	if nr4.lfsr != 0x4040 {
		t.Fatalf("lfsr got %04X want 4040 (carry copied to bit 6)", nr4.lfsr)
	}
}

func TestSoundAmpScaling(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR51, 0x11) // sound 1 on both sides
	gb.writeBus(regNR50, 0x77) // full output level both sides

	// amp = (1 + 7) * (0x7FFF / 480)
	want := int16(8 * (0x7FFF / 480))
	if gb.spu.soundAmp[0][0] != want || gb.spu.soundAmp[0][1] != want {
		t.Fatalf("amp got %d/%d want %d", gb.spu.soundAmp[0][0], gb.spu.soundAmp[0][1], want)
	}
	if gb.spu.soundAmp[1][0] != 0 {
		t.Fatalf("muxed-off sound must have zero amplification")
	}

	// saturation headroom: 4 sounds at full scale fit in int16
	if total := 4 * 15 * int32(want); total > 0x7FFF {
		t.Fatalf("mix exceeds int16 range: %d", total)
	}
}

func TestWaveChannelVolumeShift(t *testing.T) {
	gb, _ := newTestGB(t)

	// sample 0 holds 0xF in the high nibble
	gb.writeBus(nr3RAMBase, 0xF0)
	gb.writeBus(regNR30, 0x80) // sound 3 enable
	gb.writeBus(regNR32, 0x40) // half volume (shift code 2)
	gb.writeBus(regNR34, 0x80) // trigger

	if !gb.spu.nr3.running {
		t.Fatalf("channel 3 must start when enabled")
	}
	if got := gb.nextNR3Sample(0); got != 0xF>>1 {
		t.Fatalf("sample got %X want %X", got, 0xF>>1)
	}
}

func TestWaveChannelRequiresEnable(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR34, 0x80) // trigger without the sound-on bit

	if gb.spu.nr3.running {
		t.Fatalf("channel 3 must not start while disabled")
	}
}

func TestMasterDisableClearsState(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR22, 0xF0)
	gb.writeBus(regNR24, 0x80)
	gb.writeBus(regNR51, 0xFF)

	gb.writeBus(regNR52, 0x00)

	if gb.spu.enable {
		t.Fatalf("master enable must be off")
	}
	if gb.spu.nr2.running {
		t.Fatalf("channels must be cleared")
	}
	if gb.spu.soundMux != 0 {
		t.Fatalf("mux must be cleared")
	}

	// registers are dead while the SPU is off
	gb.writeBus(regNR22, 0xF0)
	if gb.spu.nr2.envelopeConfig != 0 {
		t.Fatalf("writes must be ignored while disabled")
	}
}

func TestNR52ReadBack(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.writeBus(regNR22, 0xF0)
	gb.writeBus(regNR24, 0x80)

	got := gb.readBus(regNR52)
	if got&0x80 == 0 {
		t.Fatalf("NR52 enable bit must be set, got %02X", got)
	}
	if got&(1<<1) == 0 {
		t.Fatalf("NR52 must report channel 2 running, got %02X", got)
	}
	if got&0x70 != 0x70 {
		t.Fatalf("NR52 unused bits must read high, got %02X", got)
	}
}

func TestSampleBufferHandOff(t *testing.T) {
	gb, _ := newTestGB(t)
	spu := &gb.spu

	var buf [SampleBufferLength][2]int16

	// both buffers start ready with silence
	if !spu.TryConsume(&buf) {
		t.Fatalf("first buffer must be ready at start")
	}
	if !spu.TryConsume(&buf) {
		t.Fatalf("second buffer must be ready at start")
	}
	if spu.TryConsume(&buf) {
		t.Fatalf("no third buffer may be ready")
	}

	// the producer can now fill the first buffer without blocking
	for i := 0; i < SampleBufferLength; i++ {
		gb.sendSampleToUI(int16(i), int16(-i))
	}

	if !spu.TryConsume(&buf) {
		t.Fatalf("filled buffer must be ready")
	}
	if buf[1][0] != 1 || buf[1][1] != -1 {
		t.Fatalf("frame 1 got %d/%d want 1/-1", buf[1][0], buf[1][1])
	}
}

func TestSyncSPUProducesSamplesAtRate(t *testing.T) {
	gb, _ := newTestGB(t)
	defer drainAudio(gb)()

	gb.timestamp += spuSampleRateDivisor * 100
	gb.syncSPU()

	if gb.spu.sampleIndex != 100 {
		t.Fatalf("sampleIndex got %d want 100", gb.spu.sampleIndex)
	}
	if gb.spu.samplePeriod != 0 {
		t.Fatalf("samplePeriod got %d want 0", gb.spu.samplePeriod)
	}

	// a partial period carries over
	gb.timestamp += 70
	gb.syncSPU()
	if gb.spu.sampleIndex != 101 {
		t.Fatalf("sampleIndex got %d want 101", gb.spu.sampleIndex)
	}
	if gb.spu.samplePeriod != 6 {
		t.Fatalf("samplePeriod got %d want 6", gb.spu.samplePeriod)
	}
}

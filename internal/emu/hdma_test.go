package emu

import "testing"

func TestHDMAImmediateBlockCopy(t *testing.T) {
	gb, _ := newTestGBC(t)

	for i := 0; i < 128; i++ {
		gb.writeBus(0xC100+uint16(i), byte(i)+1)
	}

	gb.writeBus(regHDMA1, 0xC1)
	gb.writeBus(regHDMA2, 0x00)
	gb.writeBus(regHDMA3, 0x00)
	gb.writeBus(regHDMA4, 0x40)

	before := gb.timestamp
	gb.writeBus(regHDMA5, 0x07) // bit 7 clear: blocking copy of 8 blocks

	if got := gb.timestamp - before; got != 256 {
		t.Fatalf("copy cycles got %d want 256 (2 per byte)", got)
	}
	for i := 0; i < 128; i++ {
		if gb.vram[0x40+i] != byte(i)+1 {
			t.Fatalf("vram[%#x] got %02X want %02X", 0x40+i, gb.vram[0x40+i], byte(i)+1)
		}
	}
	if got := gb.readBus(regHDMA5); got != 0xFF {
		t.Fatalf("HDMA5 got %02X want FF", got)
	}
}

func TestHDMASourceLowNibbleForcedZero(t *testing.T) {
	gb, _ := newTestGBC(t)

	gb.writeBus(regHDMA1, 0xC1)
	gb.writeBus(regHDMA2, 0x2F)

	if gb.hdma.sourceAddress != 0xC120 {
		t.Fatalf("source got %04X want C120", gb.hdma.sourceAddress)
	}
}

func TestHDMAHBlankModeCopiesPerHBlank(t *testing.T) {
	gb, _ := newTestGBC(t)
	defer drainAudio(gb)()

	for i := 0; i < 64; i++ {
		gb.writeBus(0xC200+uint16(i), 0x77)
	}

	gb.writeBus(regHDMA1, 0xC2)
	gb.writeBus(regHDMA2, 0x00)
	gb.writeBus(regHDMA3, 0x00)
	gb.writeBus(regHDMA4, 0x00)
	gb.writeBus(regHDMA5, 0x83) // HBLANK mode, 4 blocks

	if !gb.hdma.runOnHBlank {
		t.Fatalf("HBLANK mode must be armed")
	}

	// reach the first mode-0 entry of the current line
	gb.clockTick(mode3End)
	gb.syncPPU()

	if gb.hdma.destinationOffset != 0x10 {
		t.Fatalf("one block must be copied per HBLANK, dst=%04X", gb.hdma.destinationOffset)
	}
	for i := 0; i < 16; i++ {
		if gb.vram[i] != 0x77 {
			t.Fatalf("vram[%d] got %02X want 77", i, gb.vram[i])
		}
	}

	// a write with bit 7 clear while armed cancels the transfer
	gb.writeBus(regHDMA5, 0x00)
	if gb.hdma.runOnHBlank {
		t.Fatalf("transfer must be cancelled")
	}
}

package emu

// hdmaState tracks the GBC VRAM DMA engine: either a blocking block copy or
// 16 bytes per HBLANK until length runs out.
type hdmaState struct {
	sourceAddress     uint16
	destinationOffset uint16 // offset into the VRAM window
	length            byte   // remaining 16-byte blocks minus one
	runOnHBlank       bool
}

func (gb *GameBoy) resetHDMA() {
	gb.hdma.sourceAddress = 0
	gb.hdma.destinationOffset = 0
	gb.hdma.length = 0x7F
	gb.hdma.runOnHBlank = false
}

// copyHDMA moves length bytes from the source into VRAM at 2 cycles per
// byte. The destination wraps inside the 8KB VRAM window.
func (gb *GameBoy) copyHDMA(length uint16) {
	hdma := &gb.hdma
	src := hdma.sourceAddress
	dst := hdma.destinationOffset

	gb.timestamp += int32(length) * 2

	for ; length > 0; length-- {
		vramAddress := 0x8000 + dst%0x2000

		gb.writeBus(vramAddress, gb.readBus(src))

		src++
		dst++
	}

	hdma.sourceAddress = src
	hdma.destinationOffset = dst
}

// hblankHDMA copies one 16-byte block; the PPU calls it at every mode-0
// entry while HBLANK mode is armed.
func (gb *GameBoy) hblankHDMA() {
	hdma := &gb.hdma

	gb.copyHDMA(0x10)

	if hdma.length == 0 {
		hdma.runOnHBlank = false
		hdma.length = 0x7F
	} else {
		hdma.length--
	}
}

// startHDMA begins a transfer: blocking when hblank is false, otherwise one
// block per HBLANK.
func (gb *GameBoy) startHDMA(hblank bool) {
	hdma := &gb.hdma

	if hblank {
		gb.syncPPU()
		hdma.runOnHBlank = true
		gb.syncPPU()
		return
	}

	gb.copyHDMA((uint16(hdma.length) + 1) * 0x10)

	hdma.runOnHBlank = false
	hdma.length = 0x7F
}

package emu

// dmaLength is the whole OAM: 40 sprites of 4 bytes.
const dmaLength = 40 * 4

// dmaState tracks an in-flight OAM-DMA transfer, one byte per 4 cycles.
type dmaState struct {
	running       bool
	sourceAddress uint16 // always page-aligned
	position      int32  // next byte to copy, 0..160
}

func (gb *GameBoy) resetDMA() {
	gb.dma.running = false
	gb.dma.sourceAddress = 0
	gb.dma.position = 0
}

// syncDMA copies the bytes whose transfer slots have elapsed since the last
// catch-up. CPU reads of OAM during the copy observe the partial state.
func (gb *GameBoy) syncDMA() {
	dma := &gb.dma
	elapsed := gb.resync(syncDMA)

	if !dma.running {
		gb.scheduleSync(syncDMA, syncNever)
		return
	}

	length := elapsed / 4

	for length > 0 && dma.position < dmaLength {
		gb.ppu.oam[dma.position] = gb.readBus(dma.sourceAddress + uint16(dma.position))

		length--
		dma.position++
	}

	if dma.position >= dmaLength {
		dma.running = false
		gb.scheduleSync(syncDMA, syncNever)
	} else {
		gb.scheduleSync(syncDMA, 4)
	}
}

// startDMA arms a transfer from the given source page. Pages the DMA engine
// can't reach (ROM on DMG, anything at or above 0xE000) cancel the transfer
// silently.
func (gb *GameBoy) startDMA(sourcePage byte) {
	gb.syncDMA()

	dma := &gb.dma
	dma.sourceAddress = uint16(sourcePage) << 8
	dma.position = 0

	if (!gb.gbc && dma.sourceAddress < 0x8000) || dma.sourceAddress >= 0xE000 {
		dma.running = false
	} else {
		dma.running = true
	}

	gb.syncDMA()
}

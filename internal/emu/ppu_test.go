package emu

import "testing"

func TestFrameTimingVBlankAndFlip(t *testing.T) {
	gb, ui := newTestGB(t)
	defer drainAudio(gb)()

	// the ROM is a NOP sled; one full frame of them
	if err := gb.RunCycles(totalLines * lineCycles); err != nil {
		t.Fatalf("RunCycles: %v", err)
	}

	if ui.dmgLines != ScreenHeight {
		t.Fatalf("lines drawn got %d want %d", ui.dmgLines, ScreenHeight)
	}
	if ui.flips != 1 {
		t.Fatalf("flips got %d want 1", ui.flips)
	}
	if gb.irq.flags&(1<<irqVSync) == 0 {
		t.Fatalf("VSYNC interrupt must be raised")
	}
}

func TestPPUModeSequenceWithinLine(t *testing.T) {
	gb, _ := newTestGB(t)
	defer drainAudio(gb)()

	if mode := gb.ppuMode(); mode != 2 {
		t.Fatalf("mode at line start got %d want 2", mode)
	}

	gb.clockTick(mode2Cycles)
	gb.syncPPU()
	if mode := gb.ppuMode(); mode != 3 {
		t.Fatalf("mode after OAM search got %d want 3", mode)
	}

	gb.clockTick(mode3Cycles)
	gb.syncPPU()
	if mode := gb.ppuMode(); mode != 0 {
		t.Fatalf("mode after transfer got %d want 0", mode)
	}
}

func TestLinePositionAndLYStayInRange(t *testing.T) {
	gb, _ := newTestGB(t)
	defer drainAudio(gb)()

	for i := 0; i < 300; i++ {
		gb.clockTick(977) // deliberately not a divisor of the line length
		gb.syncPPU()

		if gb.ppu.linePosition >= lineCycles {
			t.Fatalf("linePosition %d out of range", gb.ppu.linePosition)
		}
		if gb.ppu.ly >= totalLines {
			t.Fatalf("ly %d out of range", gb.ppu.ly)
		}
	}
}

func TestSTATReadComposition(t *testing.T) {
	gb, _ := newTestGB(t)

	// ly == lyc == 0 and mode 2 at reset
	if got := gb.readBus(regSTAT); got != 0x06 {
		t.Fatalf("STAT got %02X want 06", got)
	}

	gb.writeBus(regSTAT, 0x78)
	if got := gb.readBus(regSTAT) & 0x78; got != 0x78 {
		t.Fatalf("STAT selectors got %02X want 78", got)
	}
}

func TestLYCInterrupt(t *testing.T) {
	gb, _ := newTestGB(t)
	defer drainAudio(gb)()

	gb.writeBus(regLYC, 5)
	gb.writeBus(regSTAT, 0x40)
	gb.irq.flags = 0xE0

	gb.clockTick(4 * lineCycles)
	gb.syncPPU()
	if gb.irq.flags&(1<<irqLCDStat) != 0 {
		t.Fatalf("LYC interrupt must not fire before the match")
	}

	gb.clockTick(lineCycles)
	gb.syncPPU()
	if gb.irq.flags&(1<<irqLCDStat) == 0 {
		t.Fatalf("LYC interrupt must fire when LY reaches LYC")
	}
}

func TestBackgroundRendering(t *testing.T) {
	gb, ui := newTestGB(t)
	defer drainAudio(gb)()

	// tile 0: every row solid color 3
	for row := uint16(0); row < 8; row++ {
		gb.writeBus(0x8000+row*2, 0xFF)
		gb.writeBus(0x8000+row*2+1, 0xFF)
	}
	gb.writeBus(regBGP, 0xE4)  // identity palette
	gb.writeBus(regLCDC, 0x91) // enable, background on, unsigned tile set

	gb.clockTick(mode3End)
	gb.syncPPU()

	if ui.dmgLines == 0 {
		t.Fatalf("no line drawn")
	}
	for x := 0; x < ScreenWidth; x++ {
		if ui.lastLine[x] != 3 {
			t.Fatalf("pixel %d got %d want 3", x, ui.lastLine[x])
		}
	}
}

func TestBackgroundDisabledDrawsWhite(t *testing.T) {
	gb, ui := newTestGB(t)
	defer drainAudio(gb)()

	for row := uint16(0); row < 8; row++ {
		gb.writeBus(0x8000+row*2, 0xFF)
		gb.writeBus(0x8000+row*2+1, 0xFF)
	}
	gb.writeBus(regBGP, 0xE4)
	gb.writeBus(regLCDC, 0x90) // background off

	gb.clockTick(mode3End)
	gb.syncPPU()

	for x := 0; x < ScreenWidth; x++ {
		if ui.lastLine[x] != 0 {
			t.Fatalf("pixel %d got %d want 0", x, ui.lastLine[x])
		}
	}
}

func TestSpritePriorityFirstLowerXWinsOnDMG(t *testing.T) {
	gb, ui := newTestGB(t)
	defer drainAudio(gb)()

	// two overlapping sprites: the one with lower X must win
	solidTile := func(tile uint16, color byte) {
		var lo, hi byte
		if color&1 != 0 {
			lo = 0xFF
		}
		if color&2 != 0 {
			hi = 0xFF
		}
		for row := uint16(0); row < 8; row++ {
			gb.writeBus(0x8000+tile*16+row*2, lo)
			gb.writeBus(0x8000+tile*16+row*2+1, hi)
		}
	}
	solidTile(1, 1)
	solidTile(2, 2)

	// OAM: sprite A at x=12 uses tile 2, sprite B at x=8 uses tile 1; B is
	// later in OAM but has the lower X
	gb.writeBus(0xFE00, 16)
	gb.writeBus(0xFE01, 12+8)
	gb.writeBus(0xFE02, 2)
	gb.writeBus(0xFE03, 0)
	gb.writeBus(0xFE04, 16)
	gb.writeBus(0xFE05, 8+8)
	gb.writeBus(0xFE06, 1)
	gb.writeBus(0xFE07, 0)

	gb.writeBus(regOBP0, 0xE4)
	gb.writeBus(regLCDC, 0x92) // enable, sprites on

	gb.clockTick(mode3End)
	gb.syncPPU()

	if ui.lastLine[12] != 1 {
		t.Fatalf("overlap pixel got %d want 1 (lower-X sprite)", ui.lastLine[12])
	}
}

func TestWindowLineCounterAdvancesIndependently(t *testing.T) {
	gb, _ := newTestGB(t)
	defer drainAudio(gb)()

	gb.writeBus(regWY, 0)
	gb.writeBus(regWX, 7)
	gb.writeBus(regLCDC, 0xB1) // enable, background + window

	gb.clockTick(lineCycles)
	gb.syncPPU()
	if gb.ppu.windowLine != 1 {
		t.Fatalf("windowLine got %d want 1", gb.ppu.windowLine)
	}

	// hide the window for a line: the counter must not advance
	gb.writeBus(regLCDC, 0x91)
	gb.clockTick(lineCycles)
	gb.syncPPU()
	if gb.ppu.windowLine != 1 {
		t.Fatalf("windowLine got %d want 1 while hidden", gb.ppu.windowLine)
	}

	// showing it again resumes from the same window line
	gb.writeBus(regLCDC, 0xB1)
	gb.clockTick(lineCycles)
	gb.syncPPU()
	if gb.ppu.windowLine != 2 {
		t.Fatalf("windowLine got %d want 2 after resume", gb.ppu.windowLine)
	}
}

func TestLCDCDisableBlanksDisplayAndResetsBeam(t *testing.T) {
	gb, ui := newTestGB(t)
	defer drainAudio(gb)()

	gb.writeBus(regLCDC, 0x91)
	gb.clockTick(10 * lineCycles)
	gb.syncPPU()

	drawn := ui.dmgLines
	gb.writeBus(regLCDC, 0x11) // master enable off

	if ui.dmgLines != drawn+ScreenHeight {
		t.Fatalf("disable must push %d blank lines, got %d", ScreenHeight, ui.dmgLines-drawn)
	}
	if gb.ppu.ly != 0 || gb.ppu.linePosition != 0 {
		t.Fatalf("beam must reset, ly=%d pos=%d", gb.ppu.ly, gb.ppu.linePosition)
	}
	for x := 0; x < ScreenWidth; x++ {
		if ui.lastLine[x] != 0 {
			t.Fatalf("blank line pixel got %d want 0", ui.lastLine[x])
		}
	}
}

func TestGBCPaletteAutoIncrementRoundTrip(t *testing.T) {
	gb, _ := newTestGBC(t)

	gb.writeBus(regBCPS, 0x80) // index 0, auto-increment
	gb.writeBus(regBCPD, 0x1F) // low byte of color 0
	gb.writeBus(regBCPD, 0x7C) // high byte of color 0

	if got := gb.ppu.backgroundPalettes.colors[0][0]; got != 0x7C1F {
		t.Fatalf("color got %04X want 7C1F", got)
	}

	gb.writeBus(regBCPS, 0x00)
	if got := gb.readBus(regBCPD); got != 0x1F {
		t.Fatalf("BCPD got %02X want 1F", got)
	}
}

package emu

/*
 * PPU timings, per line of 456 cycles:
 *     | Mode 2: 80 cycles | Mode 3: 172 cycles | Mode 0: 204 cycles |
 *
 * Mode 2: OAM search; Mode 3: pixel transfer; Mode 0: horizontal blanking.
 * Each visible line is rendered in one shot at the Mode 3 -> Mode 0
 * boundary, which is also where the mode-0 STAT interrupt and HBLANK HDMA
 * fire. Lines 144..153 are Mode 1 (vertical blanking): 154 lines of 456
 * cycles gives 70224 cycles per frame.
 */
const (
	mode2Cycles    = 80
	mode3Cycles    = 172
	mode3End       = mode2Cycles + mode3Cycles
	mode0Cycles    = 204
	lineCycles     = mode2Cycles + mode3Cycles + mode0Cycles
	vsyncStart     = 144
	totalLines     = 154
	lineSpritesMax = 10
	oamSprites     = 40
)

// colorPalette is one of the two GBC palette tables: 8 palettes of 4
// 15-bit colors, written through an auto-incrementing byte index.
type colorPalette struct {
	colors        [8][4]uint16
	writeIndex    byte // 0..63, selects palette/color/byte half
	autoIncrement bool
}

func (p *colorPalette) readData() byte {
	index := p.writeIndex
	color := p.colors[index>>3][(index>>1)&3]
	if index&1 != 0 {
		return byte(color >> 8)
	}
	return byte(color)
}

func (p *colorPalette) writeData(value byte) {
	index := p.writeIndex
	color := &p.colors[index>>3][(index>>1)&3]
	if index&1 != 0 {
		*color = (*color & 0x00FF) | uint16(value)<<8
	} else {
		*color = (*color & 0xFF00) | uint16(value)
	}

	if p.autoIncrement {
		p.writeIndex = (p.writeIndex + 1) & 0x3F
	}
}

// ppuState is the scanline state machine plus the raster configuration
// registers and OAM.
type ppuState struct {
	scrollX byte
	scrollY byte

	// STAT interrupt selectors
	lycFlag   bool
	mode0Flag bool
	mode1Flag bool
	mode2Flag bool

	// LCDC feature bits
	masterEnable     bool
	backgroundEnable bool // GBC: background master priority instead
	windowEnable     bool
	spriteEnable     bool
	tallSprites      bool
	bgUseHighTileMap     bool
	windowUseHighTileMap bool
	useSpriteTileSet     bool // tile set selector for background/window

	ly  byte
	lyc byte

	backgroundPalette byte
	spritePalette0    byte
	spritePalette1    byte

	windowX byte
	windowY byte
	// windowLine counts lines the window has actually been drawn on; it
	// advances independently of LY so a window hidden mid-frame resumes
	// where it left off.
	windowLine byte

	linePosition uint16 // position within the current line, < 456

	oam [oamSprites * 4]byte

	// GBC palette tables
	backgroundPalettes colorPalette
	spritePalettes     colorPalette
}

func (gb *GameBoy) resetPPU() {
	ppu := &gb.ppu

	*ppu = ppuState{}
	ppu.masterEnable = true
}

// ppuMode derives the current STAT mode from the line position.
func (gb *GameBoy) ppuMode() byte {
	ppu := &gb.ppu

	if ppu.ly >= vsyncStart {
		return 1
	}
	if ppu.linePosition < mode2Cycles {
		return 2
	}
	if ppu.linePosition < mode3End {
		return 3
	}
	return 0
}

// ppuPixel is one composed pixel before it is handed to the UI. color holds
// a gradation index on DMG and a 15-bit color on GBC.
type ppuPixel struct {
	color    uint16
	opaque   bool
	priority bool // GBC: background pixel asserts priority over sprites
}

// tileColor samples one pixel from the tile set. Sprites always use the
// 0x0000-based unsigned index space; background and window can also use the
// 0x1000-based signed space.
func (gb *GameBoy) tileColor(tileIndex byte, x, y uint, spriteTileSet, highBank bool) byte {
	const tileSize = 16 // 8x8 pixels, 2 bits per pixel

	var tileAddress int
	if spriteTileSet {
		tileAddress = int(tileIndex) * tileSize
	} else {
		tileAddress = 0x1000 + int(int8(tileIndex))*tileSize
	}
	if highBank {
		tileAddress += 0x2000
	}

	// the leftmost pixel is stored in the MSB of each byte
	x = 7 - x

	lsb := gb.vram[tileAddress+int(y)*2] >> x & 1
	msb := gb.vram[tileAddress+int(y)*2+1] >> x & 1

	return msb<<1 | lsb
}

// paletteTransform maps a 2-bit color index through a DMG palette register.
func paletteTransform(color byte, palette byte) byte {
	return palette >> (color * 2) & 3
}

// backgroundWindowPixel samples the background or window layer at map
// coordinates (x, y) from the selected 32x32 tile map.
func (gb *GameBoy) backgroundWindowPixel(x, y byte, useHighTileMap bool) ppuPixel {
	ppu := &gb.ppu

	tileMapX := uint(x) / 8
	tileMapY := uint(y) / 8
	tileX := uint(x) % 8
	tileY := uint(y) % 8

	tileMapAddress := 0x1800
	if useHighTileMap {
		tileMapAddress = 0x1C00
	}
	tileMapAddress += int(tileMapY)*32 + int(tileMapX)

	tileIndex := gb.vram[tileMapAddress]

	var pixel ppuPixel

	if gb.gbc {
		// tile attributes live in the second VRAM bank
		attrs := gb.vram[tileMapAddress+0x2000]
		if attrs&0x20 != 0 {
			tileX = 7 - tileX
		}
		if attrs&0x40 != 0 {
			tileY = 7 - tileY
		}

		color := gb.tileColor(tileIndex, tileX, tileY, ppu.useSpriteTileSet, attrs&0x08 != 0)
		pixel.priority = attrs&0x80 != 0
		pixel.opaque = color != 0
		pixel.color = ppu.backgroundPalettes.colors[attrs&0x07][color]
	} else {
		color := gb.tileColor(tileIndex, tileX, tileY, ppu.useSpriteTileSet, false)
		pixel.opaque = color != 0
		pixel.color = uint16(paletteTransform(color, ppu.backgroundPalette))
	}

	return pixel
}

func (gb *GameBoy) backgroundPixel(x, y uint) ppuPixel {
	ppu := &gb.ppu
	bgX := byte(x) + ppu.scrollX
	bgY := byte(y) + ppu.scrollY

	return gb.backgroundWindowPixel(bgX, bgY, ppu.bgUseHighTileMap)
}

func (gb *GameBoy) windowPixel(x uint) ppuPixel {
	ppu := &gb.ppu
	winX := byte(x) + 7 - ppu.windowX

	return gb.backgroundWindowPixel(winX, ppu.windowLine, ppu.windowUseHighTileMap)
}

// pixelInWindow reports whether the screen coordinates lie inside the
// window bounds.
func (gb *GameBoy) pixelInWindow(x, y uint) bool {
	ppu := &gb.ppu
	windowX := int(ppu.windowX) - 7

	return int(x) >= windowX && byte(y) >= ppu.windowY
}

// sprite is one decoded OAM entry.
type sprite struct {
	// coordinates of the top-left corner; offset so sprites can clip at the
	// top and left screen edges
	x int
	y int
	tileIndex   byte
	background  bool // displayed behind opaque background pixels
	xFlip       bool
	yFlip       bool
	usePalette1 bool // DMG palette select
	highBank    bool // GBC tile bank
	palette     byte // GBC palette select
}

func (gb *GameBoy) oamSprite(index int) sprite {
	ppu := &gb.ppu
	off := index * 4
	flags := ppu.oam[off+3]

	s := sprite{
		y:           int(ppu.oam[off]) - 16,
		x:           int(ppu.oam[off+1]) - 8,
		tileIndex:   ppu.oam[off+2],
		usePalette1: flags&0x10 != 0,
		xFlip:       flags&0x20 != 0,
		yFlip:       flags&0x40 != 0,
		background:  flags&0x80 != 0,
	}

	if gb.gbc {
		s.highBank = flags&0x08 != 0
		s.palette = flags & 0x07
	}

	return s
}

// lineSprites collects up to 10 sprites overlapping line ly. The slice ends
// with an out-of-frame sentinel so the drawing loop needs no bounds check.
// On DMG the list is stably sorted by ascending X (first drawn wins); on
// GBC the OAM order is kept.
func (gb *GameBoy) lineSprites(ly uint, sprites *[lineSpritesMax + 1]sprite) {
	ppu := &gb.ppu

	if !ppu.spriteEnable {
		sprites[0].x = ScreenWidth * 2
		return
	}

	spriteHeight := 8
	if ppu.tallSprites {
		spriteHeight = 16
	}

	n := 0
	for i := 0; i < oamSprites; i++ {
		s := gb.oamSprite(i)

		if int(ly) < s.y || int(ly) >= s.y+spriteHeight {
			continue
		}

		sprites[n] = s
		n++

		if n >= lineSpritesMax {
			break
		}
	}

	sprites[n].x = ScreenWidth * 2

	if gb.gbc {
		return
	}

	// stable insertion sort by x-coordinate
	for i := 1; i < n; i++ {
		current := sprites[i]
		j := i - 1
		for ; j >= 0; j-- {
			if sprites[j].x <= current.x {
				break
			}
			sprites[j+1] = sprites[j]
		}
		sprites[j+1] = current
	}
}

// spriteColor resolves the sprite's pixel at screen coordinates (x, y) into
// p. It returns false when the pixel is transparent or hidden behind the
// background. bgPriority carries the GBC master-priority state: when false,
// sprites always win.
func (gb *GameBoy) spriteColor(s *sprite, x, y uint, p *ppuPixel, bgPriority bool) bool {
	ppu := &gb.ppu

	if s.background && p.opaque && bgPriority {
		return false
	}

	spriteX := uint(int(x) - s.x)
	spriteY := uint(int(y) - s.y)

	tileIndex := s.tileIndex
	flipHeight := uint(7)
	if ppu.tallSprites {
		// 8x16 sprites use two consecutive tiles; the first tile's index LSB
		// is forced to 0
		tileIndex &= 0xFE
		flipHeight = 15
	}

	if s.xFlip {
		spriteX = 7 - spriteX
	}
	if s.yFlip {
		spriteY = flipHeight - spriteY
	}

	color := gb.tileColor(tileIndex, spriteX, spriteY, true, s.highBank)

	// color index 0 denotes a transparent pixel
	if color == 0 {
		return false
	}

	if gb.gbc {
		p.color = ppu.spritePalettes.colors[s.palette][color]
	} else {
		palette := ppu.spritePalette0
		if s.usePalette1 {
			palette = ppu.spritePalette1
		}
		p.color = uint16(paletteTransform(color, palette))
	}

	return true
}

// drawCurrentLine composes the 160 pixels of line LY and hands them to the
// UI.
func (gb *GameBoy) drawCurrentLine() {
	ppu := &gb.ppu
	ly := uint(ppu.ly)

	// the fake out-of-frame sprite at the end avoids bounds checks in the
	// drawing loop
	var lineSprites [lineSpritesMax + 1]sprite
	gb.lineSprites(ly, &lineSprites)

	// on GBC the background-enable bit is a master priority switch: the
	// layers still render but never hide sprites when it's clear
	bgDrawn := ppu.backgroundEnable || gb.gbc
	bgPriority := ppu.backgroundEnable

	windowUsed := false
	var line [ScreenWidth]ppuPixel
	nextSprite := 0

	for x := uint(0); x < ScreenWidth; x++ {
		var pixel ppuPixel

		if ppu.windowEnable && gb.pixelInWindow(x, ly) {
			pixel = gb.windowPixel(x)
			windowUsed = true
		} else if bgDrawn {
			pixel = gb.backgroundPixel(x, ly)
		}
		if !bgPriority {
			pixel.priority = false
		}

		if !pixel.priority || !pixel.opaque {
			if gb.gbc {
				for i := 0; lineSprites[i].x < ScreenWidth*2; i++ {
					s := &lineSprites[i]

					if int(x) < s.x || int(x) >= s.x+8 {
						continue
					}
					if gb.spriteColor(s, x, ly, &pixel, bgPriority) {
						break
					}
				}
			} else {
				// skip sprites that have already finished
				for nextSprite < lineSpritesMax && lineSprites[nextSprite].x+8 <= int(x) {
					nextSprite++
				}

				for i := nextSprite; lineSprites[i].x <= int(x); i++ {
					if gb.spriteColor(&lineSprites[i], x, ly, &pixel, true) {
						break
					}
				}
			}
		}

		line[x] = pixel
	}

	if windowUsed {
		ppu.windowLine++
	}

	if gb.gbc {
		var out [ScreenWidth]uint16
		for i := range line {
			out[i] = line[i].color
		}
		gb.ui.DrawLineGBC(int(ppu.ly), &out)
	} else {
		var out [ScreenWidth]uint8
		for i := range line {
			out[i] = uint8(line[i].color)
		}
		gb.ui.DrawLineDMG(int(ppu.ly), &out)
	}
}

// syncPPU advances the scanline state machine across the elapsed cycles,
// rendering lines at the Mode 3 -> Mode 0 boundary, then schedules the next
// boundary it must observe.
func (gb *GameBoy) syncPPU() {
	ppu := &gb.ppu
	elapsed := gb.resync(syncPPU)
	lineRemaining := int32(lineCycles - ppu.linePosition)

	if !ppu.masterEnable {
		gb.scheduleSync(syncPPU, syncNever)
		return
	}

	for elapsed > 0 {
		prevMode := gb.ppuMode()

		if elapsed < lineRemaining {
			ppu.linePosition += uint16(elapsed)
			lineRemaining -= elapsed
			elapsed = 0

			if prevMode != 0 && gb.ppuMode() == 0 {
				// crossed the Mode 3 -> Mode 0 boundary mid-step
				gb.drawCurrentLine()

				if ppu.mode0Flag {
					gb.triggerIRQ(irqLCDStat)
				}
				if gb.hdma.runOnHBlank {
					gb.hblankHDMA()
				}
			}
		} else {
			elapsed -= lineRemaining

			if prevMode == 2 || prevMode == 3 {
				// finishing the line without having reached the Mode 0
				// boundary; the line still has to be drawn
				gb.drawCurrentLine()

				if ppu.mode0Flag {
					gb.triggerIRQ(irqLCDStat)
				}
				if gb.hdma.runOnHBlank {
					gb.hblankHDMA()
				}
			}

			ppu.ly++
			ppu.linePosition = 0
			lineRemaining = lineCycles

			if ppu.ly == vsyncStart {
				gb.ui.Flip()
				gb.triggerIRQ(irqVSync)

				if ppu.mode1Flag {
					gb.triggerIRQ(irqLCDStat)
				}
			}

			if ppu.ly >= totalLines {
				ppu.ly = 0
				ppu.windowLine = 0
			}

			if ppu.lycFlag && ppu.ly == ppu.lyc {
				gb.triggerIRQ(irqLCDStat)
			}

			if ppu.mode2Flag && ppu.ly < vsyncStart {
				// Mode 2 is the first mode entered on a visible line
				gb.triggerIRQ(irqLCDStat)
			}
		}
	}

	// force a sync at the start of the next line, or already at the Mode 0
	// boundary when something has to happen there
	nextEvent := lineRemaining
	if (ppu.mode0Flag || gb.hdma.runOnHBlank) && gb.ppuMode() >= 2 {
		nextEvent -= mode0Cycles
	}

	gb.scheduleSync(syncPPU, nextEvent)
}

// setLCDStat applies a STAT write: only the four interrupt selector bits are
// writable.
func (gb *GameBoy) setLCDStat(value byte) {
	ppu := &gb.ppu
	prevMode0Flag := ppu.mode0Flag

	gb.syncPPU()

	ppu.mode0Flag = value&0x08 != 0
	ppu.mode1Flag = value&0x10 != 0
	ppu.mode2Flag = value&0x20 != 0
	ppu.lycFlag = value&0x40 != 0

	// enabling mode 0 interrupts moves the next event date
	if !prevMode0Flag && ppu.mode0Flag {
		gb.syncPPU()
	}
}

// lcdStat recomposes the STAT read-back from derived state.
func (gb *GameBoy) lcdStat() byte {
	ppu := &gb.ppu

	if !ppu.masterEnable {
		return 0
	}

	gb.syncPPU()

	value := gb.ppuMode()
	if ppu.ly == ppu.lyc {
		value |= 1 << 2
	}
	if ppu.mode0Flag {
		value |= 1 << 3
	}
	if ppu.mode1Flag {
		value |= 1 << 4
	}
	if ppu.mode2Flag {
		value |= 1 << 5
	}
	if ppu.lycFlag {
		value |= 1 << 6
	}

	return value
}

// setLCDC applies an LCDC write. Disabling the master enable blanks the
// whole display and rewinds the beam to the top-left corner.
func (gb *GameBoy) setLCDC(value byte) {
	ppu := &gb.ppu

	gb.syncPPU()

	ppu.backgroundEnable = value&0x01 != 0
	ppu.spriteEnable = value&0x02 != 0
	ppu.tallSprites = value&0x04 != 0
	ppu.bgUseHighTileMap = value&0x08 != 0
	ppu.useSpriteTileSet = value&0x10 != 0
	ppu.windowEnable = value&0x20 != 0
	ppu.windowUseHighTileMap = value&0x40 != 0
	masterEnable := value&0x80 != 0

	if masterEnable != ppu.masterEnable {
		ppu.masterEnable = masterEnable

		if !masterEnable {
			gb.blankDisplay()

			ppu.ly = 0
			ppu.linePosition = 0
			ppu.windowLine = 0
		}

		gb.syncPPU()
	}
}

// blankDisplay pushes all-lightest lines to the UI, used when the LCD is
// switched off.
func (gb *GameBoy) blankDisplay() {
	if gb.gbc {
		var line [ScreenWidth]uint16
		for i := range line {
			line[i] = 0x7FFF
		}
		for ly := 0; ly < ScreenHeight; ly++ {
			gb.ui.DrawLineGBC(ly, &line)
		}
	} else {
		var line [ScreenWidth]uint8
		for ly := 0; ly < ScreenHeight; ly++ {
			gb.ui.DrawLineDMG(ly, &line)
		}
	}
}

func (gb *GameBoy) lcdc() byte {
	ppu := &gb.ppu

	gb.syncPPU()

	var value byte
	if ppu.backgroundEnable {
		value |= 0x01
	}
	if ppu.spriteEnable {
		value |= 0x02
	}
	if ppu.tallSprites {
		value |= 0x04
	}
	if ppu.bgUseHighTileMap {
		value |= 0x08
	}
	if ppu.useSpriteTileSet {
		value |= 0x10
	}
	if ppu.windowEnable {
		value |= 0x20
	}
	if ppu.windowUseHighTileMap {
		value |= 0x40
	}
	if ppu.masterEnable {
		value |= 0x80
	}

	return value
}

func (gb *GameBoy) currentLY() byte {
	gb.syncPPU()
	return gb.ppu.ly
}

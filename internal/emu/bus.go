package emu

import (
	"log"

	"gbemu/internal/cart"
)

// Address map regions and I/O registers.
const (
	romEnd          = 0x8000
	vramBase        = 0x8000
	vramEnd         = 0xA000
	cartRAMBase     = 0xA000
	cartRAMEnd      = 0xC000
	internalRAMBase = 0xC000
	internalRAMEnd  = 0xE000
	echoRAMBase     = 0xE000
	echoRAMEnd      = 0xFE00
	oamBase         = 0xFE00
	oamEnd          = 0xFEA0
	zeroPageBase    = 0xFF80
	zeroPageEnd     = 0xFFFF

	regInput = 0xFF00
	regSB    = 0xFF01
	regSC    = 0xFF02
	regDIV   = 0xFF04
	regTIMA  = 0xFF05
	regTMA   = 0xFF06
	regTAC   = 0xFF07
	regIF    = 0xFF0F

	regNR10 = 0xFF10
	regNR11 = 0xFF11
	regNR12 = 0xFF12
	regNR13 = 0xFF13
	regNR14 = 0xFF14
	regNR21 = 0xFF16
	regNR22 = 0xFF17
	regNR23 = 0xFF18
	regNR24 = 0xFF19
	regNR30 = 0xFF1A
	regNR31 = 0xFF1B
	regNR32 = 0xFF1C
	regNR33 = 0xFF1D
	regNR34 = 0xFF1E
	regNR41 = 0xFF20
	regNR42 = 0xFF21
	regNR43 = 0xFF22
	regNR44 = 0xFF23
	regNR50 = 0xFF24
	regNR51 = 0xFF25
	regNR52 = 0xFF26

	nr3RAMBase = 0xFF30
	nr3RAMEnd  = 0xFF40

	regLCDC = 0xFF40
	regSTAT = 0xFF41
	regSCY  = 0xFF42
	regSCX  = 0xFF43
	regLY   = 0xFF44
	regLYC  = 0xFF45
	regDMA  = 0xFF46
	regBGP  = 0xFF47
	regOBP0 = 0xFF48
	regOBP1 = 0xFF49
	regWY   = 0xFF4A
	regWX   = 0xFF4B

	// GBC-only registers
	regVBK   = 0xFF4F
	regHDMA1 = 0xFF51
	regHDMA2 = 0xFF52
	regHDMA3 = 0xFF53
	regHDMA4 = 0xFF54
	regHDMA5 = 0xFF55
	regBCPS  = 0xFF68
	regBCPD  = 0xFF69
	regOCPS  = 0xFF6A
	regOCPD  = 0xFF6B
	regSVBK  = 0xFF70

	regIE = 0xFFFF
)

// internalRAMOffset maps an offset into the work-RAM window onto the backing
// array: 0x0000–0x0FFF is always bank 0, 0x1000–0x1FFF is the switchable
// bank (fixed at 1 on DMG).
func (gb *GameBoy) internalRAMOffset(offset uint16) int {
	if offset < 0x1000 {
		return int(offset)
	}

	bank := int(gb.wramHighBank)
	if bank == 0 {
		bank = 1
	}
	return int(offset) + (bank-1)*0x1000
}

func (gb *GameBoy) vramOffset(offset uint16) int {
	if gb.vramHighBank {
		return int(offset) + 0x2000
	}
	return int(offset)
}

// readBus reads one byte from the CPU-visible address space. Accesses that
// target a device register catch the device up first so the read observes
// post-catch-up state.
func (gb *GameBoy) readBus(address uint16) byte {
	switch {
	case address < romEnd:
		return gb.cart.ReadROM(address)
	case address >= zeroPageBase && address < zeroPageEnd:
		return gb.hram[address-zeroPageBase]
	case address < vramEnd:
		return gb.vram[gb.vramOffset(address-vramBase)]
	case address < cartRAMEnd:
		return gb.cart.ReadRAM(address - cartRAMBase)
	case address < internalRAMEnd:
		return gb.wram[gb.internalRAMOffset(address-internalRAMBase)]
	case address < echoRAMEnd:
		return gb.wram[gb.internalRAMOffset(address-echoRAMBase)]
	case address >= oamBase && address < oamEnd:
		return gb.ppu.oam[address-oamBase]
	}

	switch address {
	case regInput:
		return gb.gamepadState()
	case regSB:
		return 0xFF
	case regSC:
		return 0
	case regDIV:
		gb.syncTimer()
		return byte(gb.timer.dividerCounter >> 8)
	case regTIMA:
		gb.syncTimer()
		return gb.timer.counter
	case regTMA:
		return gb.timer.modulo
	case regTAC:
		return gb.timerConfig()
	case regIF:
		return gb.irq.flags
	case regIE:
		return gb.irq.enable

	case regNR10:
		sweep := &gb.spu.nr1.sweep
		value := byte(0x80)
		value |= sweep.shift
		if sweep.subtract {
			value |= 1 << 3
		}
		value |= sweep.time << 4
		return value
	case regNR11:
		return gb.spu.nr1.wave.dutyCycle<<6 | 0x3F
	case regNR12:
		return gb.spu.nr1.envelopeConfig
	case regNR13:
		return 0xFF // write-only
	case regNR14:
		return durationEnableBit(gb.spu.nr1.duration.enable) | 0xBF
	case regNR21:
		return gb.spu.nr2.wave.dutyCycle<<6 | 0x3F
	case regNR22:
		return gb.spu.nr2.envelopeConfig
	case regNR23:
		return 0xFF // write-only
	case regNR24:
		return durationEnableBit(gb.spu.nr2.duration.enable) | 0xBF
	case regNR30:
		gb.syncSPU()
		if gb.spu.nr3.enable {
			return 0xFF
		}
		return 0x7F
	case regNR31:
		return gb.spu.nr3.t1
	case regNR32:
		return gb.spu.nr3.volumeShift<<5 | 0x9F
	case regNR33:
		return 0xFF // write-only
	case regNR34:
		return durationEnableBit(gb.spu.nr3.duration.enable) | 0xBF
	case regNR41:
		return 0xFF // write-only
	case regNR42:
		return gb.spu.nr4.envelopeConfig
	case regNR43:
		return gb.spu.nr4.lfsrConfig
	case regNR44:
		return durationEnableBit(gb.spu.nr4.duration.enable) | 0xBF
	case regNR50:
		return gb.spu.outputLevel
	case regNR51:
		return gb.spu.soundMux
	case regNR52:
		gb.syncSPU()
		spu := &gb.spu
		var value byte
		if spu.nr1.running {
			value |= 1 << 0
		}
		if spu.nr2.running {
			value |= 1 << 1
		}
		if spu.nr3.running {
			value |= 1 << 2
		}
		if spu.nr4.running {
			value |= 1 << 3
		}
		if spu.enable {
			value |= 1 << 7
		}
		return value | 0x70

	case regLCDC:
		return gb.lcdc()
	case regSTAT:
		return gb.lcdStat()
	case regSCY:
		return gb.ppu.scrollY
	case regSCX:
		return gb.ppu.scrollX
	case regLY:
		return gb.currentLY()
	case regLYC:
		return gb.ppu.lyc
	case regDMA:
		return byte(gb.dma.sourceAddress >> 8)
	case regBGP:
		return gb.ppu.backgroundPalette
	case regOBP0:
		return gb.ppu.spritePalette0
	case regOBP1:
		return gb.ppu.spritePalette1
	case regWY:
		return gb.ppu.windowY
	case regWX:
		return gb.ppu.windowX
	}

	if address >= nr3RAMBase && address < nr3RAMEnd {
		return gb.spu.nr3.ram[address-nr3RAMBase]
	}

	if gb.gbc {
		switch address {
		case regVBK:
			if gb.vramHighBank {
				return 0xFF
			}
			return 0xFE
		case regHDMA1:
			return byte(gb.hdma.sourceAddress >> 8)
		case regHDMA2:
			return byte(gb.hdma.sourceAddress)
		case regHDMA3:
			return byte(gb.hdma.destinationOffset >> 8)
		case regHDMA4:
			return byte(gb.hdma.destinationOffset)
		case regHDMA5:
			value := gb.hdma.length & 0x7F
			if !gb.hdma.runOnHBlank {
				value |= 0x80
			}
			return value
		case regBCPS:
			return paletteSelect(&gb.ppu.backgroundPalettes)
		case regBCPD:
			return gb.ppu.backgroundPalettes.readData()
		case regOCPS:
			return paletteSelect(&gb.ppu.spritePalettes)
		case regOCPD:
			return gb.ppu.spritePalettes.readData()
		case regSVBK:
			return gb.wramHighBank | 0xF8
		}
	}

	log.Printf("emu: unsupported bus read at %#04x", address)
	return 0xFF
}

func durationEnableBit(enable bool) byte {
	if enable {
		return 1 << 6
	}
	return 0
}

func paletteSelect(p *colorPalette) byte {
	value := p.writeIndex
	if p.autoIncrement {
		value |= 0x80
	}
	return value
}

// writeBus writes one byte into the CPU-visible address space, catching the
// targeted device up first so the write lands at the correct moment.
func (gb *GameBoy) writeBus(address uint16, value byte) {
	switch {
	case address < romEnd:
		gb.cart.WriteROM(address, value)
		return
	case address >= zeroPageBase && address < zeroPageEnd:
		gb.hram[address-zeroPageBase] = value
		return
	case address < vramEnd:
		gb.syncPPU()
		gb.vram[gb.vramOffset(address-vramBase)] = value
		return
	case address < cartRAMEnd:
		gb.cart.WriteRAM(address-cartRAMBase, value)
		gb.scheduleCartSave()
		return
	case address < internalRAMEnd:
		gb.wram[gb.internalRAMOffset(address-internalRAMBase)] = value
		return
	case address < echoRAMEnd:
		gb.wram[gb.internalRAMOffset(address-echoRAMBase)] = value
		return
	case address >= oamBase && address < oamEnd:
		gb.syncPPU()
		gb.ppu.oam[address-oamBase] = value
		return
	}

	switch address {
	case regInput:
		gb.selectGamepad(value)
		return
	case regSB, regSC:
		// serial link is not emulated
		return
	case regDIV:
		gb.syncTimer()
		gb.timer.dividerCounter = 0
		gb.syncTimer()
		return
	case regTIMA:
		gb.syncTimer()
		gb.timer.counter = value
		gb.syncTimer()
		return
	case regTMA:
		gb.syncTimer()
		gb.timer.modulo = value
		gb.syncTimer()
		return
	case regTAC:
		gb.setTimerConfig(value)
		return
	case regIF:
		gb.irq.flags = value | 0xE0
		return
	case regIE:
		gb.irq.enable = value
		return

	case regNR10:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr1.sweep.reload(value)
		}
		return
	case regNR11:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr1.wave.dutyCycle = value >> 6
			reloadDuration(&gb.spu.nr1.duration, nr1T1Max, value&0x3F)
		}
		return
	case regNR12:
		if gb.spu.enable {
			// takes effect on sound start
			gb.spu.nr1.envelopeConfig = value
		}
		return
	case regNR13:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr1.sweep.divider.offset
			*offset = *offset&0x700 | uint16(value)
		}
		return
	case regNR14:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr1.sweep.divider.offset
			*offset = *offset&0xFF | uint16(value&7)<<8

			gb.spu.nr1.duration.enable = value&0x40 != 0
			if value&0x80 != 0 {
				gb.startNR1()
			}
		}
		return
	case regNR21:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr2.wave.dutyCycle = value >> 6
			reloadDuration(&gb.spu.nr2.duration, nr2T1Max, value&0x3F)
		}
		return
	case regNR22:
		if gb.spu.enable {
			gb.spu.nr2.envelopeConfig = value
		}
		return
	case regNR23:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr2.divider.offset
			*offset = *offset&0x700 | uint16(value)
		}
		return
	case regNR24:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr2.divider.offset
			*offset = *offset&0xFF | uint16(value&7)<<8

			gb.spu.nr2.duration.enable = value&0x40 != 0
			if value&0x80 != 0 {
				gb.startNR2()
			}
		}
		return
	case regNR30:
		if gb.spu.enable {
			// enabling doesn't start Sound 3 until the trigger write to NR34
			gb.syncSPU()
			gb.spu.nr3.enable = value&0x80 != 0
			if !gb.spu.nr3.enable {
				gb.spu.nr3.running = false
			}
		}
		return
	case regNR31:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr3.t1 = value
			reloadDuration(&gb.spu.nr3.duration, nr3T1Max, value)
		}
		return
	case regNR32:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr3.volumeShift = value >> 5 & 3
		}
		return
	case regNR33:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr3.divider.offset
			*offset = *offset&0x700 | uint16(value)
		}
		return
	case regNR34:
		if gb.spu.enable {
			gb.syncSPU()
			offset := &gb.spu.nr3.divider.offset
			*offset = *offset&0xFF | uint16(value&7)<<8

			gb.spu.nr3.duration.enable = value&0x40 != 0
			if value&0x80 != 0 {
				gb.startNR3()
			}
		}
		return
	case regNR41:
		if gb.spu.enable {
			gb.syncSPU()
			reloadDuration(&gb.spu.nr4.duration, nr4T1Max, value&0x3F)
		}
		return
	case regNR42:
		if gb.spu.enable {
			gb.spu.nr4.envelopeConfig = value
		}
		return
	case regNR43:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr4.lfsrConfig = value
		}
		return
	case regNR44:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.nr4.duration.enable = value&0x40 != 0
			if value&0x80 != 0 {
				gb.startNR4()
			}
		}
		return
	case regNR50:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.outputLevel = value
			gb.updateSoundAmp()
		}
		return
	case regNR51:
		if gb.spu.enable {
			gb.syncSPU()
			gb.spu.soundMux = value
			gb.updateSoundAmp()
		}
		return
	case regNR52:
		enable := value&0x80 != 0
		if gb.spu.enable == enable {
			return
		}

		gb.syncSPU()
		if !enable {
			gb.resetSPU()
		}
		gb.spu.enable = enable
		return

	case regLCDC:
		gb.setLCDC(value)
		return
	case regSTAT:
		gb.setLCDStat(value)
		return
	case regSCY:
		gb.syncPPU()
		gb.ppu.scrollY = value
		return
	case regSCX:
		gb.syncPPU()
		gb.ppu.scrollX = value
		return
	case regLYC:
		gb.ppu.lyc = value
		return
	case regDMA:
		gb.startDMA(value)
		return
	case regBGP:
		gb.syncPPU()
		gb.ppu.backgroundPalette = value
		return
	case regOBP0:
		gb.syncPPU()
		gb.ppu.spritePalette0 = value
		return
	case regOBP1:
		gb.syncPPU()
		gb.ppu.spritePalette1 = value
		return
	case regWY:
		gb.syncPPU()
		gb.ppu.windowY = value
		return
	case regWX:
		gb.syncPPU()
		gb.ppu.windowX = value
		return
	}

	if address >= nr3RAMBase && address < nr3RAMEnd {
		gb.spu.nr3.ram[address-nr3RAMBase] = value
		return
	}

	if gb.gbc {
		switch address {
		case regVBK:
			gb.vramHighBank = value&1 != 0
			return
		case regHDMA1:
			gb.hdma.sourceAddress = gb.hdma.sourceAddress&0x00FF | uint16(value)<<8
			return
		case regHDMA2:
			// the low nibble is forced to zero
			gb.hdma.sourceAddress = gb.hdma.sourceAddress&0xFF00 | uint16(value&0xF0)
			return
		case regHDMA3:
			gb.hdma.destinationOffset = gb.hdma.destinationOffset&0x00FF | uint16(value)<<8
			return
		case regHDMA4:
			gb.hdma.destinationOffset = gb.hdma.destinationOffset&0xFF00 | uint16(value&0xF0)
			return
		case regHDMA5:
			runOnHBlank := value&0x80 != 0
			gb.hdma.length = value & 0x7F

			if !runOnHBlank && gb.hdma.runOnHBlank {
				// cancel the in-progress HBLANK transfer
				gb.syncPPU()
				gb.hdma.runOnHBlank = false
			} else {
				gb.startHDMA(runOnHBlank)
			}
			return
		case regBCPS:
			gb.ppu.backgroundPalettes.autoIncrement = value&0x80 != 0
			gb.ppu.backgroundPalettes.writeIndex = value & 0x3F
			return
		case regBCPD:
			gb.syncPPU()
			gb.ppu.backgroundPalettes.writeData(value)
			return
		case regOCPS:
			gb.ppu.spritePalettes.autoIncrement = value&0x80 != 0
			gb.ppu.spritePalettes.writeIndex = value & 0x3F
			return
		case regOCPD:
			gb.syncPPU()
			gb.ppu.spritePalettes.writeData(value)
			return
		case regSVBK:
			gb.wramHighBank = value & 7
			return
		}
	}

	log.Printf("emu: unsupported bus write at %#04x [value=%#02x]", address, value)
}

// scheduleCartSave arms a save-file flush three emulated seconds ahead when
// the cartridge has unsaved battery-backed changes.
func (gb *GameBoy) scheduleCartSave() {
	if bb, ok := gb.cart.(interface{ Dirty() bool }); ok && bb.Dirty() {
		gb.scheduleSync(syncCart, 3*CPUFrequency)
	}
}

// syncCart flushes battery-backed RAM and RTC state to the save file.
func (gb *GameBoy) syncCart() {
	gb.resync(syncCart)

	if gb.savePath != "" {
		if err := cart.WriteSaveFile(gb.cart, gb.savePath); err != nil {
			log.Printf("emu: %v", err)
		}
	}

	gb.scheduleSync(syncCart, syncNever)
}

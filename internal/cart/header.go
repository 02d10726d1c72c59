package cart

import (
	"fmt"
	"strings"
)

const (
	offTitle    = 0x0134
	offCGBFlag  = 0x0143
	offCartType = 0x0147
	offROMBanks = 0x0148
	offRAMSize  = 0x0149

	romBankSize = 16 * 1024
	ramBankSize = 8 * 1024

	// GB ROMs are at least 32KB (2 banks); the largest licensed cartridge is
	// 8MB but homebrew goes bigger.
	minROMSize = 2 * romBankSize
	maxROMSize = 32 * 1024 * 1024
)

// Model identifies the memory bank controller soldered into the cartridge.
type Model int

const (
	ModelSimple Model = iota
	ModelMBC1
	ModelMBC2
	ModelMBC3
	ModelMBC5
)

func (m Model) String() string {
	switch m {
	case ModelSimple:
		return "ROM only"
	case ModelMBC1:
		return "MBC1"
	case ModelMBC2:
		return "MBC2"
	case ModelMBC3:
		return "MBC3"
	case ModelMBC5:
		return "MBC5"
	default:
		return "unknown"
	}
}

// Header holds the fields of the cartridge header the emulator cares about.
type Header struct {
	Title    string
	GBC      bool // CGB flag at 0x0143: the game uses color features
	CartType byte

	Model      Model
	ROMBanks   int
	RAMBanks   int
	RAMLength  int
	HasBattery bool
	HasRTC     bool
}

// ParseHeader decodes and validates the header of a ROM image.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < minROMSize {
		return nil, fmt.Errorf("ROM file is too small (%d bytes)", len(rom))
	}
	if len(rom) > maxROMSize {
		return nil, fmt.Errorf("ROM file is too big (%d bytes)", len(rom))
	}

	h := &Header{
		Title:    decodeTitle(rom),
		GBC:      rom[offCGBFlag]&0x80 != 0,
		CartType: rom[offCartType],
	}

	banks, ok := decodeROMBanks(rom[offROMBanks])
	if !ok {
		return nil, fmt.Errorf("unknown ROM size configuration %#02x", rom[offROMBanks])
	}
	h.ROMBanks = banks

	if len(rom) < h.ROMBanks*romBankSize {
		return nil, fmt.Errorf("ROM file is too small to hold the declared %d banks", h.ROMBanks)
	}

	ramBanks, ramLength, ok := decodeRAMSize(rom[offRAMSize])
	if !ok {
		return nil, fmt.Errorf("unknown RAM size configuration %#02x", rom[offRAMSize])
	}
	h.RAMBanks = ramBanks
	h.RAMLength = ramLength

	switch h.CartType {
	case 0x00:
		h.Model = ModelSimple
	case 0x01, 0x02, 0x03:
		h.Model = ModelMBC1
	case 0x05, 0x06:
		h.Model = ModelMBC2
		// MBC2 always has 512 * 4 bits of built-in RAM; allocate one byte per
		// nibble for convenience.
		h.RAMBanks = 1
		h.RAMLength = 512
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		h.Model = ModelMBC3
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		h.Model = ModelMBC5
	default:
		return nil, fmt.Errorf("unsupported cartridge type %#02x", h.CartType)
	}

	switch h.CartType {
	case 0x03, 0x06, 0x09, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0xFF:
		h.HasBattery = true
	}
	switch h.CartType {
	case 0x0F, 0x10:
		h.HasRTC = true
	}
	// Memory backup isn't possible without RAM or an RTC.
	if h.RAMLength == 0 && !h.HasRTC {
		h.HasBattery = false
	}

	return h, nil
}

func decodeTitle(rom []byte) string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		c := rom[offTitle+i]
		if c == 0 {
			break
		}
		if c < 0x20 || c > 0x7E {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func decodeROMBanks(code byte) (int, bool) {
	switch code {
	case 0x00:
		return 2, true
	case 0x01:
		return 4, true
	case 0x02:
		return 8, true
	case 0x03:
		return 16, true
	case 0x04:
		return 32, true
	case 0x05:
		return 64, true
	case 0x06:
		return 128, true
	case 0x07:
		return 256, true
	case 0x08:
		return 512, true
	case 0x52:
		return 72, true
	case 0x53:
		return 80, true
	case 0x54:
		return 96, true
	default:
		return 0, false
	}
}

func decodeRAMSize(code byte) (banks, length int, ok bool) {
	switch code {
	case 0x00:
		return 0, 0, true
	case 0x01:
		// one bank but only a quarter of a typical 8KB chip
		return 1, ramBankSize / 4, true
	case 0x02:
		return 1, ramBankSize, true
	case 0x03:
		return 4, 4 * ramBankSize, true
	case 0x04:
		return 16, 16 * ramBankSize, true
	default:
		return 0, 0, false
	}
}

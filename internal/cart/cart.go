package cart

// Cartridge is the bus-facing view of a ROM image and its banking hardware.
// Read covers ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF, passed as
// an offset into the 8KB window); Write covers the MBC control windows and
// external RAM.
type Cartridge interface {
	// ReadROM returns a byte from the 32KB ROM window (0x0000–0x7FFF).
	ReadROM(offset uint16) byte
	// WriteROM handles writes to the ROM window, which MBCs use as control
	// registers.
	WriteROM(offset uint16, value byte)
	// ReadRAM returns a byte from the 8KB external RAM window
	// (offset relative to 0xA000).
	ReadRAM(offset uint16) byte
	// WriteRAM stores a byte into the external RAM window.
	WriteRAM(offset uint16, value byte)

	Header() *Header
}

// BatteryBacked is implemented by cartridges whose RAM (and RTC) survive
// power-off. Dirty reports whether there are unsaved changes; SaveData
// serializes the RAM image followed by the RTC dump when present.
type BatteryBacked interface {
	Dirty() bool
	SaveData() []byte
	LoadSaveData(data []byte) error
	markClean()
}

// New picks a banking implementation based on the ROM header.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}

	switch h.Model {
	case ModelSimple:
		return newSimple(rom, h), nil
	case ModelMBC1:
		return newMBC1(rom, h), nil
	case ModelMBC2:
		return newMBC2(rom, h), nil
	case ModelMBC3:
		return newMBC3(rom, h), nil
	case ModelMBC5:
		return newMBC5(rom, h), nil
	}
	// ParseHeader rejects unknown models
	panic("unreachable cartridge model")
}

// battery tracks unsaved external RAM changes for battery-backed carts.
type battery struct {
	hasBattery bool
	dirty      bool
}

func (b *battery) markDirty() {
	if b.hasBattery {
		b.dirty = true
	}
}

func (b *battery) Dirty() bool { return b.dirty }
func (b *battery) markClean()  { b.dirty = false }

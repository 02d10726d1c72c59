package cart

// MBC2 has a built-in 512 x 4-bit RAM; only the low nibble of each cell is
// usable. The ROM bank number lives in the low 4 bits of the 0x2000–0x3FFF
// window.
type MBC2 struct {
	rom    []byte
	ram    []byte
	header *Header
	battery

	currentROMBank    byte
	ramWriteProtected bool
}

func newMBC2(rom []byte, h *Header) *MBC2 {
	m := &MBC2{
		rom:               rom,
		ram:               make([]byte, h.RAMLength),
		header:            h,
		currentROMBank:    1,
		ramWriteProtected: true,
	}
	m.hasBattery = h.HasBattery
	return m
}

func (m *MBC2) Header() *Header { return m.header }

func (m *MBC2) ReadROM(offset uint16) byte {
	if offset < romBankSize {
		return m.rom[offset]
	}
	bank := int(m.currentROMBank) % m.header.ROMBanks
	return m.rom[int(offset)+(bank-1)*romBankSize]
}

func (m *MBC2) WriteROM(offset uint16, value byte) {
	switch {
	case offset < 0x2000:
		m.ramWriteProtected = value&0xF != 0xA
	case offset < 0x4000:
		m.currentROMBank = value & 0xF
		if m.currentROMBank == 0 {
			m.currentROMBank = 1
		}
	}
}

func (m *MBC2) ReadRAM(offset uint16) byte {
	return m.ram[int(offset)%len(m.ram)]
}

func (m *MBC2) WriteRAM(offset uint16, value byte) {
	if m.ramWriteProtected {
		return
	}
	// only 4 bits per address; the high nibble is unusable
	m.ram[int(offset)%len(m.ram)] = value | 0xF0
	m.markDirty()
}

func (m *MBC2) SaveData() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC2) LoadSaveData(data []byte) error {
	return loadRAMImage(m.ram, data)
}

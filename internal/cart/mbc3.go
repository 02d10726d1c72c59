package cart

// MBC3 banks up to 2MB of ROM and 32KB of RAM and optionally carries a
// battery-backed real-time clock. RAM bank values 0x08..0x0C map the RAM
// window onto the clock registers instead of RAM.
type MBC3 struct {
	rom    []byte
	ram    []byte
	header *Header
	rtc    *RTC
	battery

	currentROMBank    byte
	currentRAMBank    byte // 0..3 selects RAM, 0x08..0x0C the RTC registers
	ramWriteProtected bool
}

func newMBC3(rom []byte, h *Header) *MBC3 {
	m := &MBC3{
		rom:               rom,
		header:            h,
		currentROMBank:    1,
		ramWriteProtected: true,
	}
	m.hasBattery = h.HasBattery
	if h.RAMLength > 0 {
		m.ram = make([]byte, h.RAMLength)
	}
	if h.HasRTC {
		m.rtc = NewRTC()
	}
	return m
}

func (m *MBC3) Header() *Header { return m.header }

// RTC exposes the clock, nil when the cartridge has none.
func (m *MBC3) RTC() *RTC { return m.rtc }

func (m *MBC3) ReadROM(offset uint16) byte {
	if offset < romBankSize {
		return m.rom[offset]
	}
	return m.rom[int(offset)+(int(m.currentROMBank)-1)*romBankSize]
}

func (m *MBC3) WriteROM(offset uint16, value byte) {
	switch {
	case offset < 0x2000:
		m.ramWriteProtected = value&0xF != 0xA
	case offset < 0x4000:
		bank := int(value&0x7F) % m.header.ROMBanks
		if bank == 0 {
			bank = 1
		}
		m.currentROMBank = byte(bank)
	case offset < 0x6000:
		m.currentRAMBank = value
	default:
		if m.rtc != nil {
			m.rtc.Latch(value == 1)
		}
	}
}

func (m *MBC3) ReadRAM(offset uint16) byte {
	if m.currentRAMBank <= 3 {
		if len(m.ram) == 0 {
			return 0xFF
		}
		bank := int(m.currentRAMBank) % m.header.RAMBanks
		return m.ram[bank*ramBankSize+int(offset)]
	}

	// RTC registers are only reachable while RAM is write-enabled, even for
	// reads.
	if m.rtc != nil && !m.ramWriteProtected {
		return m.rtc.Read(m.currentRAMBank)
	}
	return 0xFF
}

func (m *MBC3) WriteRAM(offset uint16, value byte) {
	if m.ramWriteProtected {
		return
	}

	if m.currentRAMBank <= 3 {
		if len(m.ram) == 0 {
			return
		}
		bank := int(m.currentRAMBank) % m.header.RAMBanks
		m.ram[bank*ramBankSize+int(offset)] = value
		m.markDirty()
		return
	}

	if m.rtc != nil {
		m.rtc.Write(m.currentRAMBank, value)
		m.markDirty()
	}
}

func (m *MBC3) SaveData() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	if m.rtc != nil {
		out = append(out, m.rtc.Dump()...)
	}
	return out
}

func (m *MBC3) LoadSaveData(data []byte) error {
	if err := loadRAMImage(m.ram, data); err != nil {
		return err
	}
	if m.rtc != nil {
		return m.rtc.Load(data[len(m.ram):])
	}
	return nil
}

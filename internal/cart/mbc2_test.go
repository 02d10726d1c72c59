package cart

import "testing"

func newTestMBC2(t *testing.T) *MBC2 {
	t.Helper()
	c, err := New(buildROM(0x06, 0x01, 0x00, 4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c.(*MBC2)
}

func TestMBC2ROMBanking(t *testing.T) {
	m := newTestMBC2(t)

	m.WriteROM(0x2000, 0x03)
	if got := m.ReadROM(0x4000); got != 3 {
		t.Fatalf("bank got %02X want 03", got)
	}

	m.WriteROM(0x2000, 0x00)
	if got := m.ReadROM(0x4000); got != 1 {
		t.Fatalf("bank 0 select must alias bank 1, got %02X", got)
	}
}

func TestMBC2NibbleRAM(t *testing.T) {
	m := newTestMBC2(t)

	m.WriteROM(0x0000, 0x0A)
	m.WriteRAM(0x0005, 0x3C)

	// only the low nibble is stored
	if got := m.ReadRAM(0x0005); got != 0xFC {
		t.Fatalf("RAM got %02X want FC", got)
	}

	// the 512-byte RAM wraps inside the window
	if got := m.ReadRAM(0x0005 + 512); got != 0xFC {
		t.Fatalf("wrapped RAM got %02X want FC", got)
	}
}

package emu

// interrupt identifies one of the five request bits in IF/IE. Lower values
// have priority when several requests are pending.
type interrupt int

const (
	irqVSync interrupt = iota
	irqLCDStat
	irqTimer
	irqSerial
	irqInput
)

// irqState holds the IF and IE registers. Only the low 5 bits are meaningful;
// the upper bits of IF read back as 1.
type irqState struct {
	flags  byte // IF, 0xFF0F
	enable byte // IE, 0xFFFF
}

func (gb *GameBoy) resetIRQ() {
	gb.irq.flags = 0xE0
	gb.irq.enable = 0
}

// triggerIRQ raises the request bit for the given interrupt.
func (gb *GameBoy) triggerIRQ(which interrupt) {
	gb.irq.flags |= 1 << which
}

package emu

// gamepadState models the two active-low 4-bit button lines and their
// selection bits from the input register.
type gamepadState struct {
	dpadState       byte // Right/Left/Up/Down in bits 0..3, active low
	dpadSelected    bool
	buttonsState    byte // A/B/Select/Start in bits 0..3, active low
	buttonsSelected bool
}

func (gb *GameBoy) resetGamepad() {
	// bit 4 (resp. 5) is kept low so the selection bit reads back 0 whenever
	// that line is selected
	gb.gamepad.dpadState = ^byte(0x10)
	gb.gamepad.dpadSelected = false
	gb.gamepad.buttonsState = ^byte(0x20)
	gb.gamepad.buttonsSelected = false
}

// SetGamepad records a button state change. Pressing a button while its line
// is selected raises the INPUT interrupt.
func (gb *GameBoy) SetGamepad(button Button, pressed bool) {
	pad := &gb.gamepad
	prev := gb.gamepadState()

	state := &pad.buttonsState
	bit := uint(button - ButtonA)
	if button <= ButtonDown {
		state = &pad.dpadState
		bit = uint(button)
	}

	if pressed {
		*state &^= 1 << bit
	} else {
		*state |= 1 << bit
	}

	if pressed && prev != gb.gamepadState() {
		gb.triggerIRQ(irqInput)
	}
}

// selectGamepad applies a write to the input register; bits 4 and 5 select
// the D-pad and button lines (active low).
func (gb *GameBoy) selectGamepad(value byte) {
	gb.gamepad.dpadSelected = value&0x10 == 0
	gb.gamepad.buttonsSelected = value&0x20 == 0
}

// gamepadState composes the input register read-back from whichever lines
// are selected.
func (gb *GameBoy) gamepadState() byte {
	value := byte(0xFF)

	if gb.gamepad.dpadSelected {
		value &= gb.gamepad.dpadState
	}
	if gb.gamepad.buttonsSelected {
		value &= gb.gamepad.buttonsState
	}

	return value
}

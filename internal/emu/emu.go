// Package emu implements the emulator core: an SM83 interpreter, the
// memory-mapped bus, and the PPU/SPU/DMA/timer sub-devices, all sharing one
// monotonic cycle counter through a cooperative catch-up scheduler.
package emu

import (
	"gbemu/internal/cart"
)

// CPUFrequency is the DMG master clock in T-states per second.
const CPUFrequency = 4194304

// Screen dimensions in pixels.
const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

// Button identifies one of the eight gamepad inputs.
type Button int

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

// UI is the host-side contract: the core pushes finished scanlines and frame
// flips to it and polls it for input once per frame batch.
type UI interface {
	// DrawLineDMG delivers one finished scanline of 2-bit gradation indices.
	DrawLineDMG(ly int, line *[ScreenWidth]uint8)
	// DrawLineGBC delivers one finished scanline of 15-bit xBBBBBGGGGGRRRRR
	// colors.
	DrawLineGBC(ly int, line *[ScreenWidth]uint16)
	// Flip marks the end of a frame.
	Flip()
	// RefreshGamepad drains host input events; implementations call
	// SetGamepad and may RequestQuit.
	RefreshGamepad()
	// Destroy releases host resources on shutdown.
	Destroy()
}

// GameBoy is the owning aggregate: every device leaf hangs off this struct
// and is mutated only from the CPU goroutine, either directly through bus
// access or through scheduled catch-ups. The SPU's sample buffers are the
// single cross-thread boundary.
type GameBoy struct {
	gbc  bool // emulating the Color variant
	quit bool

	// timestamp counts elapsed T-states since the last scheduler rebase
	timestamp int32

	sync    syncState
	irq     irqState
	cpu     cpuState
	ppu     ppuState
	spu     spuState
	dma     dmaState
	hdma    hdmaState
	timer   timerState
	gamepad gamepadState

	cart     cart.Cartridge
	savePath string

	// 8 x 4KB work RAM banks; only bank 0/1 exist on DMG
	wram         [0x8000]byte
	wramHighBank byte
	// two 8KB VRAM banks; the high bank is GBC-only
	vram         [0x4000]byte
	vramHighBank bool
	hram         [0x7F]byte

	ui UI
}

// New builds a machine around a loaded cartridge. savePath may be empty when
// battery persistence is not wanted.
func New(c cart.Cartridge, ui UI, savePath string) *GameBoy {
	gb := &GameBoy{
		cart:     c,
		ui:       ui,
		savePath: savePath,
		gbc:      c.Header().GBC,
	}
	gb.Reset()
	return gb
}

// Reset puts every device into its post-boot state.
func (gb *GameBoy) Reset() {
	gb.resetSync()
	gb.resetIRQ()
	gb.resetCPU()
	gb.resetPPU()
	gb.resetGamepad()
	gb.resetDMA()
	gb.resetHDMA()
	gb.resetTimer()
	gb.resetSPU()

	gb.wramHighBank = 1
	gb.vramHighBank = false
	gb.quit = false
}

// GBC reports whether the machine runs in Color mode.
func (gb *GameBoy) GBC() bool { return gb.gbc }

// RequestQuit asks the main loop to stop after the current batch.
func (gb *GameBoy) RequestQuit() { gb.quit = true }

// Quit reports whether shutdown was requested.
func (gb *GameBoy) Quit() bool { return gb.quit }

// SPU exposes the sound unit so the host audio thread can consume sample
// buffers.
func (gb *GameBoy) SPU() *SPU { return &gb.spu }

// RunFrame polls the UI for input and then emulates one batch of CPU cycles.
// The batch is kept short so input latency stays below a frame.
func (gb *GameBoy) RunFrame() error {
	gb.ui.RefreshGamepad()
	return gb.RunCycles(CPUFrequency / 120)
}

// Shutdown flushes battery-backed cartridge state and tears down the UI.
func (gb *GameBoy) Shutdown() error {
	err := cart.WriteSaveFile(gb.cart, gb.savePath)
	gb.ui.Destroy()
	return err
}

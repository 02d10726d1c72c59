// Package ui hosts the emulator core inside an ebiten window: it implements
// the core's five-callback UI contract and owns the audio player that drains
// the SPU's sample buffers.
package ui

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"gbemu/internal/emu"
)

// dmgPalette maps the four DMG gradations to screen colors, lightest first.
var dmgPalette = [4]color.RGBA{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// keyBindings maps host keys to gamepad buttons.
var keyBindings = [...]struct {
	key    ebiten.Key
	button emu.Button
}{
	{ebiten.KeyRight, emu.ButtonRight},
	{ebiten.KeyLeft, emu.ButtonLeft},
	{ebiten.KeyUp, emu.ButtonUp},
	{ebiten.KeyDown, emu.ButtonDown},
	{ebiten.KeyZ, emu.ButtonA},
	{ebiten.KeyX, emu.ButtonB},
	{ebiten.KeyShiftRight, emu.ButtonSelect},
	{ebiten.KeyEnter, emu.ButtonStart},
}

// App is the ebiten front-end. Update drives the emulation batches, Draw
// blits the last completed frame.
type App struct {
	cfg Config
	gb  *emu.GameBoy

	// staging framebuffer the core draws lines into; published to tex on
	// Flip
	fb    []byte // RGBA, 160x144
	tex   *ebiten.Image
	dirty bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
}

// New creates the window shell. Attach must be called before the game loop
// starts.
func New(cfg Config) *App {
	cfg.Defaults()

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(emu.ScreenWidth*cfg.Scale, emu.ScreenHeight*cfg.Scale)

	return &App{
		cfg:      cfg,
		fb:       make([]byte, emu.ScreenWidth*emu.ScreenHeight*4),
		tex:      ebiten.NewImage(emu.ScreenWidth, emu.ScreenHeight),
		audioCtx: audio.NewContext(emu.SampleRate),
	}
}

// Attach wires the machine whose frames and input this window serves.
func (a *App) Attach(gb *emu.GameBoy) { a.gb = gb }

// Run enters the ebiten game loop and returns when the emulator quits.
func (a *App) Run() error {
	err := ebiten.RunGame(a)
	if err == ebiten.Termination {
		err = nil
	}
	return err
}

func (a *App) Update() error {
	if a.gb == nil {
		return nil
	}

	// the player is created lazily so window init isn't blocked by the
	// audio backend
	if a.audioPlayer == nil {
		player, err := a.audioCtx.NewPlayer(newSPUStream(a.gb.SPU()))
		if err != nil {
			return err
		}
		a.audioPlayer = player
		a.audioPlayer.SetBufferSize(40 * time.Millisecond)
		a.audioPlayer.Play()
	}

	if a.gb.Quit() {
		return ebiten.Termination
	}

	// two 1/120s batches per 60Hz tick keeps emulated time at wall-clock
	// speed; the SPU's buffer hand-off provides the fine-grained pacing
	for i := 0; i < 2; i++ {
		if err := a.gb.RunFrame(); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.dirty {
		a.tex.WritePixels(a.fb)
		a.dirty = false
	}
	screen.DrawImage(a.tex, nil)
}

func (a *App) Layout(_, _ int) (int, int) {
	return emu.ScreenWidth, emu.ScreenHeight
}

// DrawLineDMG implements emu.UI.
func (a *App) DrawLineDMG(ly int, line *[emu.ScreenWidth]uint8) {
	offset := ly * emu.ScreenWidth * 4
	for x, gradation := range line {
		c := dmgPalette[gradation&3]
		a.fb[offset+x*4] = c.R
		a.fb[offset+x*4+1] = c.G
		a.fb[offset+x*4+2] = c.B
		a.fb[offset+x*4+3] = 0xFF
	}
}

// DrawLineGBC implements emu.UI; colors arrive as xBBBBBGGGGGRRRRR.
func (a *App) DrawLineGBC(ly int, line *[emu.ScreenWidth]uint16) {
	offset := ly * emu.ScreenWidth * 4
	for x, c := range line {
		r := byte(c & 0x1F)
		g := byte(c >> 5 & 0x1F)
		b := byte(c >> 10 & 0x1F)
		// expand 5-bit channels to 8 bits
		a.fb[offset+x*4] = r<<3 | r>>2
		a.fb[offset+x*4+1] = g<<3 | g>>2
		a.fb[offset+x*4+2] = b<<3 | b>>2
		a.fb[offset+x*4+3] = 0xFF
	}
}

// Flip implements emu.UI: the staged frame is complete.
func (a *App) Flip() { a.dirty = true }

// RefreshGamepad implements emu.UI: poll the keyboard into the button
// matrix.
func (a *App) RefreshGamepad() {
	for _, binding := range keyBindings {
		a.gb.SetGamepad(binding.button, ebiten.IsKeyPressed(binding.key))
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.gb.RequestQuit()
	}
}

// Destroy implements emu.UI.
func (a *App) Destroy() {
	if a.audioPlayer != nil {
		a.audioPlayer.Close()
	}
}

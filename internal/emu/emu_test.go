package emu

import (
	"testing"
	"time"

	"gbemu/internal/cart"
)

// nullUI records callback activity without a host window.
type nullUI struct {
	dmgLines int
	gbcLines int
	flips    int
	refresh  int
	lastLine [ScreenWidth]uint8
}

func (u *nullUI) DrawLineDMG(ly int, line *[ScreenWidth]uint8) {
	u.dmgLines++
	u.lastLine = *line
}
func (u *nullUI) DrawLineGBC(ly int, line *[ScreenWidth]uint16) { u.gbcLines++ }
func (u *nullUI) Flip()                                         { u.flips++ }
func (u *nullUI) RefreshGamepad()                               { u.refresh++ }
func (u *nullUI) Destroy()                                      {}

// testROM builds a minimal valid 32KB ROM-only image.
func testROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x147] = 0x00 // ROM only
	rom[0x148] = 0x00 // 2 banks
	rom[0x149] = 0x00 // no RAM
	return rom
}

func newTestGB(t *testing.T) (*GameBoy, *nullUI) {
	t.Helper()
	return newTestGBWithROM(t, testROM())
}

func newTestGBC(t *testing.T) (*GameBoy, *nullUI) {
	t.Helper()
	rom := testROM()
	rom[0x143] = 0x80
	return newTestGBWithROM(t, rom)
}

func newTestGBWithROM(t *testing.T, rom []byte) (*GameBoy, *nullUI) {
	t.Helper()
	c, err := cart.New(rom)
	if err != nil {
		t.Fatalf("cart.New: %v", err)
	}
	ui := &nullUI{}
	return New(c, ui, ""), ui
}

// drainAudio consumes SPU sample buffers in the background so long-running
// tests don't block on the producer-side hand-off. The returned stop
// function must be deferred.
func drainAudio(gb *GameBoy) (stop func()) {
	done := make(chan struct{})
	go func() {
		var buf [SampleBufferLength][2]int16
		for {
			select {
			case <-done:
				return
			default:
			}
			if !gb.spu.TryConsume(&buf) {
				time.Sleep(time.Millisecond)
			}
		}
	}()
	return func() { close(done) }
}

func TestResyncMarksTokenCaughtUp(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.timestamp = 100
	elapsed := gb.resync(syncTimer)
	if elapsed != 100 {
		t.Fatalf("elapsed got %d want 100", elapsed)
	}
	if gb.sync.lastSync[syncTimer] != gb.timestamp {
		t.Fatalf("lastSync got %d want %d", gb.sync.lastSync[syncTimer], gb.timestamp)
	}

	// a second resync at the same timestamp reports no elapsed cycles
	if elapsed := gb.resync(syncTimer); elapsed != 0 {
		t.Fatalf("second elapsed got %d want 0", elapsed)
	}
}

func TestResyncNegativeElapsedClamped(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.sync.lastSync[syncDMA] = 50
	gb.timestamp = 10
	if elapsed := gb.resync(syncDMA); elapsed != 0 {
		t.Fatalf("elapsed got %d want 0", elapsed)
	}
}

func TestScheduleSyncRecomputesFirstEvent(t *testing.T) {
	gb, _ := newTestGB(t)

	for token := syncToken(0); token < numSyncTokens; token++ {
		gb.scheduleSync(token, syncNever)
	}
	gb.scheduleSync(syncTimer, 500)
	gb.scheduleSync(syncPPU, 300)

	if gb.sync.firstEvent != 300 {
		t.Fatalf("firstEvent got %d want 300", gb.sync.firstEvent)
	}

	min := gb.sync.nextEvent[0]
	for _, event := range gb.sync.nextEvent[1:] {
		if event < min {
			min = event
		}
	}
	if gb.sync.firstEvent != min {
		t.Fatalf("firstEvent %d is not the minimum %d", gb.sync.firstEvent, min)
	}
}

func TestRebaseSyncShiftsAllDates(t *testing.T) {
	gb, _ := newTestGB(t)

	gb.timestamp = 1000
	for token := syncToken(0); token < numSyncTokens; token++ {
		gb.sync.lastSync[token] = 900
		gb.scheduleSync(token, 200)
	}

	gb.rebaseSync()

	if gb.timestamp != 0 {
		t.Fatalf("timestamp got %d want 0", gb.timestamp)
	}
	for token := syncToken(0); token < numSyncTokens; token++ {
		if gb.sync.lastSync[token] != -100 {
			t.Fatalf("lastSync[%d] got %d want -100", token, gb.sync.lastSync[token])
		}
		if gb.sync.nextEvent[token] != 200 {
			t.Fatalf("nextEvent[%d] got %d want 200", token, gb.sync.nextEvent[token])
		}
	}
	if gb.sync.firstEvent != 200 {
		t.Fatalf("firstEvent got %d want 200", gb.sync.firstEvent)
	}
}

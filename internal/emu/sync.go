package emu

import "log"

// syncToken identifies a device in the catch-up scheduler. The dispatch
// order below is fixed so cross-device observations (HDMA inspecting PPU
// mode, for instance) stay consistent.
type syncToken int

const (
	syncPPU syncToken = iota
	syncDMA
	syncTimer
	syncSPU
	syncCart
	numSyncTokens
)

// syncNever stands in for "no upcoming event"; any real schedule must be
// smaller.
const syncNever = 10000000

// syncState tracks, per device, when it last caught up and when it next
// needs service. firstEvent caches the minimum of nextEvent so the CPU's
// inner loop only compares one value.
type syncState struct {
	firstEvent int32
	lastSync   [numSyncTokens]int32
	nextEvent  [numSyncTokens]int32
}

func (gb *GameBoy) resetSync() {
	for i := range gb.sync.lastSync {
		gb.sync.lastSync[i] = 0
		gb.sync.nextEvent[i] = 0
	}
	gb.timestamp = 0
	gb.sync.firstEvent = 0
}

// resync returns the number of cycles elapsed since the token's last
// catch-up and marks it as caught up now. A negative value indicates a
// scheduling bug; it is diagnosed and treated as zero.
func (gb *GameBoy) resync(token syncToken) int32 {
	elapsed := gb.timestamp - gb.sync.lastSync[token]

	if elapsed < 0 {
		log.Printf("emu: negative sync %d for token %d", elapsed, token)
		elapsed = 0
	}

	gb.sync.lastSync[token] = gb.timestamp

	return elapsed
}

// scheduleSync sets the token's next service date cycles from now and
// recomputes the cached first event.
func (gb *GameBoy) scheduleSync(token syncToken, cycles int32) {
	s := &gb.sync

	s.nextEvent[token] = gb.timestamp + cycles

	first := s.nextEvent[0]
	for _, event := range s.nextEvent[1:] {
		if event < first {
			first = event
		}
	}
	s.firstEvent = first
}

// checkSyncEvents runs every due device catch-up, in fixed token order, until
// no event date is in the past. Each catch-up reschedules its own token.
func (gb *GameBoy) checkSyncEvents() {
	s := &gb.sync

	for gb.timestamp >= s.firstEvent {
		timestamp := gb.timestamp

		if timestamp >= s.nextEvent[syncPPU] {
			gb.syncPPU()
		}
		if timestamp >= s.nextEvent[syncDMA] {
			gb.syncDMA()
		}
		if timestamp >= s.nextEvent[syncTimer] {
			gb.syncTimer()
		}
		if timestamp >= s.nextEvent[syncSPU] {
			gb.syncSPU()
		}
		if timestamp >= s.nextEvent[syncCart] {
			gb.syncCart()
		}
	}
}

// rebaseSync subtracts the current timestamp from every scheduler date so the
// 32-bit counter can't overflow. Called before each CPU batch.
func (gb *GameBoy) rebaseSync() {
	s := &gb.sync

	for i := range s.lastSync {
		s.lastSync[i] -= gb.timestamp
		s.nextEvent[i] -= gb.timestamp
	}

	s.firstEvent -= gb.timestamp
	gb.timestamp = 0
}

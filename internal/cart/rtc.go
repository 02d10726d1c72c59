package cart

import (
	"encoding/binary"
	"errors"
	"time"
)

// rtcDumpLength is the serialized RTC footer appended to the save file:
// base (u64 BE), halt date (u64 BE), latch flag, then the five latched
// date registers.
const rtcDumpLength = 8 + 8 + 1 + 5

// RTCDate mirrors the five MBC3 clock registers. DaysHigh packs the day MSB
// (bit 0), the halt flag (bit 6) and the sticky day-carry flag (bit 7).
type RTCDate struct {
	Seconds  byte
	Minutes  byte
	Hours    byte
	DaysLow  byte
	DaysHigh byte
}

// RTC models the battery-backed real-time clock of MBC3 cartridges. The
// running date is wallclock − base; while halted it is haltDate − base.
// Suspending the emulator therefore looks like advancing time to the
// cartridge, same as the real hardware losing no time while powered off.
type RTC struct {
	base     uint64
	haltDate uint64
	latch    bool
	latched  RTCDate

	now func() uint64 // wallclock source, swappable in tests
}

func NewRTC() *RTC {
	r := &RTC{now: systemTime}
	r.base = r.now()
	r.latchDate(&r.latched)
	return r
}

func systemTime() uint64 { return uint64(time.Now().Unix()) }

func (r *RTC) halted() bool {
	return r.latched.DaysHigh&0x40 != 0
}

func (r *RTC) currentTimestamp() uint64 {
	if r.halted() {
		return r.haltDate
	}
	return r.now()
}

// latchDate captures the current date into d, preserving d's halt bit.
func (r *RTC) latchDate(d *RTCDate) {
	now := r.currentTimestamp()

	if now >= r.base {
		now -= r.base
	} else {
		// system time went backwards; restart from zero
		r.base = now
		now = 0
	}

	d.Seconds = byte(now % 60)
	now /= 60
	d.Minutes = byte(now % 60)
	now /= 60
	d.Hours = byte(now % 24)
	now /= 24

	d.DaysLow = byte(now)
	d.DaysHigh &= 0x40 // keep halt, clear day MSB and carry
	d.DaysHigh |= byte(now>>8) & 1
	if now > 0x1FF {
		d.DaysHigh |= 0x80 // day counter overflowed past 511
	}
}

// setDate recomputes base so that the running clock matches d.
func (r *RTC) setDate(d *RTCDate) {
	base := r.currentTimestamp()

	days := uint64(d.DaysLow)
	days += uint64(d.DaysHigh&1) * 0x100

	base -= days * 24 * 60 * 60
	base -= uint64(d.Hours) * 60 * 60
	base -= uint64(d.Minutes) * 60
	base -= uint64(d.Seconds)

	r.base = base
}

// Latch recaptures the latched date on a false→true transition.
func (r *RTC) Latch(latch bool) {
	if !r.latch && latch {
		r.latchDate(&r.latched)
	}
	r.latch = latch
}

// Read returns a latched clock register. The offset is the MBC3 RAM bank
// value used to select it (0x08..0x0C).
func (r *RTC) Read(offset byte) byte {
	switch offset {
	case 0x08:
		return r.latched.Seconds
	case 0x09:
		return r.latched.Minutes
	case 0x0A:
		return r.latched.Hours
	case 0x0B:
		return r.latched.DaysLow
	case 0x0C:
		return r.latched.DaysHigh
	default:
		return 0xFF
	}
}

// Write sets a clock register and re-pins base so the running clock agrees
// with the stored value.
func (r *RTC) Write(offset byte, value byte) {
	wasHalted := r.halted()

	var date RTCDate
	date.DaysHigh = r.latched.DaysHigh
	r.latchDate(&date)

	switch offset {
	case 0x08:
		r.latched.Seconds = value
		date.Seconds = value
	case 0x09:
		r.latched.Minutes = value
		date.Minutes = value
	case 0x0A:
		r.latched.Hours = value
		date.Hours = value
	case 0x0B:
		r.latched.DaysLow = value
		date.DaysLow = value
	case 0x0C:
		r.latched.DaysHigh = value
		date.DaysHigh = value

		if !wasHalted && r.halted() {
			r.haltDate = r.now()
		}
	default:
		return
	}

	r.setDate(&date)
}

// Dump serializes the clock state as the save-file footer.
func (r *RTC) Dump() []byte {
	out := make([]byte, rtcDumpLength)
	binary.BigEndian.PutUint64(out[0:], r.base)
	binary.BigEndian.PutUint64(out[8:], r.haltDate)
	if r.latch {
		out[16] = 1
	}
	out[17] = r.latched.Seconds
	out[18] = r.latched.Minutes
	out[19] = r.latched.Hours
	out[20] = r.latched.DaysLow
	out[21] = r.latched.DaysHigh
	return out
}

// Load restores clock state from a save-file footer.
func (r *RTC) Load(data []byte) error {
	if len(data) < rtcDumpLength {
		return errors.New("RTC save data is truncated")
	}
	r.base = binary.BigEndian.Uint64(data[0:])
	r.haltDate = binary.BigEndian.Uint64(data[8:])
	r.latch = data[16] != 0
	r.latched.Seconds = data[17]
	r.latched.Minutes = data[18]
	r.latched.Hours = data[19]
	r.latched.DaysLow = data[20]
	r.latched.DaysHigh = data[21]
	return nil
}

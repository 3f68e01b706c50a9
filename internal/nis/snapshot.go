package nis

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Snapshot is one validated UPS status reading. Values are only meaningful
// for fields in Present.
type Snapshot struct {
	Values     [NumFields]int
	Present    FieldSet
	CapturedAt time.Time
}

// Value returns the integer value of f.
func (s Snapshot) Value(f StatusField) int { return s.Values[f] }

// Has reports whether f was observed (or derived) for this snapshot.
func (s Snapshot) Has(f StatusField) bool { return s.Present.Has(f) }

// Usable reports whether every expected field is present.
func (s Snapshot) Usable() bool { return s.Present.Contains(ExpectedFields) }

func (s Snapshot) Online() bool   { return s.Values[Online] != 0 }
func (s Snapshot) Charging() bool { return s.Values[Charging] != 0 }

// deriveCharging fills in Charging: the battery is below full while the
// UPS is on line power.
func (s *Snapshot) deriveCharging() {
	v := 0
	if s.Values[BatteryCharge] < 100 && s.Values[Online] != 0 {
		v = 1
	}
	s.Values[Charging] = v
	s.Present = s.Present.Add(Charging)
}

// Store holds the last-known-good Snapshot. One writer replaces it
// wholesale; any number of goroutines may read it concurrently.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// NewStore returns a Store holding the zero Snapshot.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{})
	return s
}

// Current returns a copy of the published snapshot.
func (s *Store) Current() Snapshot {
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return Snapshot{}
}

// IsUsable reports whether a complete snapshot has ever been published.
func (s *Store) IsUsable() bool { return s.Current().Usable() }

func (s *Store) publish(snap Snapshot) { s.cur.Store(&snap) }

// Dump writes a human readable rendering of snap for troubleshooting.
func Dump(w io.Writer, snap Snapshot) {
	fmt.Fprintf(w, "\nGrabbed stats:\n")
	fmt.Fprintf(w, "------------------------\n")
	fmt.Fprintf(w, "Line Voltage [%d]: %d\n", LineVoltage, snap.Values[LineVoltage])
	fmt.Fprintf(w, "Charge       [%d]: %d\n", BatteryCharge, snap.Values[BatteryCharge])
	fmt.Fprintf(w, "Load Percent [%d]: %d\n", LoadPercent, snap.Values[LoadPercent])
	fmt.Fprintf(w, "Time left(m) [%d]: %d\n", TimeLeft, snap.Values[TimeLeft])
	fmt.Fprintf(w, "Online       [%d]: %s\n", Online, boolStr(snap.Online()))
	fmt.Fprintf(w, "Charging     [%d]: %s\n", Charging, boolStr(snap.Charging()))
	fmt.Fprintf(w, "Present        : %s\n", snap.Present)
	if !snap.CapturedAt.IsZero() {
		fmt.Fprintf(w, "Captured       : %s\n", snap.CapturedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "------------------------\n\n")
}

func boolStr(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

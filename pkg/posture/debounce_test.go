package posture

import (
	"testing"
	"time"
)

const frame = 33 * time.Millisecond

func newTestDebouncer() *Debouncer {
	return NewDebouncer(DefaultConfig())
}

func TestDebouncer_SixBadFramesNeverFire(t *testing.T) {
	d := newTestDebouncer()
	now := time.Now()

	for i := 1; i <= 6; i++ {
		dec := d.Observe(Bad, now)
		if dec.Fire {
			t.Fatalf("fired on bad frame %d", i)
		}
		if dec.Count != i {
			t.Errorf("Count = %d, want %d", dec.Count, i)
		}
		now = now.Add(frame)
	}

	if dec := d.Observe(Bad, now); !dec.Fire {
		t.Error("7th consecutive bad frame should fire")
	}
}

func TestDebouncer_CooldownSuppressesRepeats(t *testing.T) {
	d := newTestDebouncer()
	start := time.Now()
	now := start

	fired := 0
	var firstAlert time.Time
	// 2.9 seconds of continuous bad frames
	for now.Sub(start) < 2900*time.Millisecond {
		if d.Observe(Bad, now).Fire {
			fired++
			if fired == 1 {
				firstAlert = now
			}
		}
		now = now.Add(frame)
	}

	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}

	// Just before the cooldown ends
	if d.Observe(Bad, firstAlert.Add(3*time.Second-time.Millisecond)).Fire {
		t.Error("fired before the cooldown elapsed")
	}

	// Exactly at the boundary
	if !d.Observe(Bad, firstAlert.Add(3*time.Second)).Fire {
		t.Error("should fire exactly at the cooldown boundary")
	}
}

func TestDebouncer_FiringKeepsCount(t *testing.T) {
	d := newTestDebouncer()
	now := time.Now()

	for i := 0; i < 7; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}
	if d.Count() != 7 {
		t.Errorf("Count = %d after firing, want 7", d.Count())
	}
}

func TestDebouncer_GoodResets(t *testing.T) {
	d := newTestDebouncer()
	now := time.Now()

	for i := 0; i < 5; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}

	if dec := d.Observe(Good, now); dec.Count != 0 {
		t.Errorf("Count = %d after good frame, want 0", dec.Count)
	}
	now = now.Add(frame)

	for i := 1; i <= 6; i++ {
		if d.Observe(Bad, now).Fire {
			t.Fatalf("fired on bad frame %d after reset", i)
		}
		now = now.Add(frame)
	}
	if !d.Observe(Bad, now).Fire {
		t.Error("7 new consecutive bad frames should fire")
	}
}

func TestDebouncer_UnknownNeitherCountsNorResets(t *testing.T) {
	d := newTestDebouncer()
	now := time.Now()

	for i := 0; i < 4; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}

	for i := 0; i < 10; i++ {
		dec := d.Observe(Unknown, now)
		if dec.Count != 4 || dec.Fire {
			t.Fatalf("Unknown changed state: %+v", dec)
		}
		now = now.Add(frame)
	}

	for i := 0; i < 2; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}
	if !d.Observe(Bad, now).Fire {
		t.Error("7th bad frame across unknown frames should fire")
	}
}

func TestDebouncer_SetCooldown(t *testing.T) {
	d := newTestDebouncer()
	d.SetCooldown(time.Second)
	now := time.Now()

	for i := 0; i < 7; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}
	last, ok := d.LastAlert()
	if !ok {
		t.Fatal("expected an alert")
	}
	if !d.Observe(Bad, last.Add(time.Second)).Fire {
		t.Error("should fire after the shortened cooldown")
	}
}

func TestDebouncer_SustainDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BadSustain = time.Second
	d := NewDebouncer(cfg)

	if got := d.Threshold(); got != 30 {
		t.Errorf("Threshold before measuring = %d, want 30 (nominal 30 fps)", got)
	}

	// Frames arrive at 10 fps
	now := time.Now()
	d.Observe(Good, now)
	d.Observe(Good, now.Add(100*time.Millisecond))

	if got := d.Threshold(); got != 10 {
		t.Errorf("Threshold at 10 fps = %d, want 10", got)
	}
	if rate := d.FrameRate(); rate < 9.99 || rate > 10.01 {
		t.Errorf("FrameRate = %v, want 10", rate)
	}
}

func TestFramesFor(t *testing.T) {
	tests := []struct {
		sustain time.Duration
		fps     float64
		expect  int
	}{
		{time.Second, 30, 30},
		{time.Second, 15, 15},
		{200 * time.Millisecond, 30, 6},
		{time.Millisecond, 30, 1},
	}
	for _, tc := range tests {
		if got := FramesFor(tc.sustain, tc.fps); got != tc.expect {
			t.Errorf("FramesFor(%v, %v) = %d, want %d", tc.sustain, tc.fps, got, tc.expect)
		}
	}
}

func TestDebouncer_ResetKeepsCooldown(t *testing.T) {
	d := newTestDebouncer()
	now := time.Now()
	for i := 0; i < 7; i++ {
		d.Observe(Bad, now)
		now = now.Add(frame)
	}
	d.Reset()

	for i := 0; i < 7; i++ {
		if d.Observe(Bad, now).Fire {
			t.Fatal("reset must not bypass the cooldown")
		}
		now = now.Add(frame)
	}
}

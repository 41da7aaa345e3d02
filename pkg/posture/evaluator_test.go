package posture

import (
	"testing"

	"github.com/teslashibe/go-posture/pkg/pose"
)

func TestEvaluate(t *testing.T) {
	baseline := pose.Signature{ShoulderSlope: 2, NeckAngle: 172, HeadForward: false}

	tests := []struct {
		name        string
		sig         pose.Signature
		sensitivity int
		expect      Classification
	}{
		{
			name:        "identical",
			sig:         baseline,
			sensitivity: 8,
			expect:      Good,
		},
		{
			name:        "shoulder diff 9 over 8",
			sig:         pose.Signature{ShoulderSlope: 11, NeckAngle: 172},
			sensitivity: 8,
			expect:      Bad,
		},
		{
			name:        "shoulder diff exactly at sensitivity",
			sig:         pose.Signature{ShoulderSlope: 10, NeckAngle: 172},
			sensitivity: 8,
			expect:      Good,
		},
		{
			name:        "neck diff over sensitivity",
			sig:         pose.Signature{ShoulderSlope: 2, NeckAngle: 160},
			sensitivity: 8,
			expect:      Bad,
		},
		{
			name:        "head moves forward regardless of angles",
			sig:         pose.Signature{ShoulderSlope: 5, NeckAngle: 175, HeadForward: true},
			sensitivity: 8,
			expect:      Bad,
		},
		{
			name:        "small diffs within sensitivity",
			sig:         pose.Signature{ShoulderSlope: 5, NeckAngle: 175},
			sensitivity: 8,
			expect:      Good,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.sig, baseline, tc.sensitivity)
			if got != tc.expect {
				t.Errorf("Evaluate = %v, want %v", got, tc.expect)
			}
		})
	}
}

func TestEvaluate_HeadForwardBaseline(t *testing.T) {
	// A baseline captured with the head forward does not penalize it later.
	baseline := pose.Signature{ShoulderSlope: 2, NeckAngle: 165, HeadForward: true}
	sig := pose.Signature{ShoulderSlope: 3, NeckAngle: 166, HeadForward: true}

	if got := Evaluate(sig, baseline, 8); got != Good {
		t.Errorf("Evaluate = %v, want good", got)
	}
}

func TestEvaluate_IdenticalAlwaysGood(t *testing.T) {
	sigs := []pose.Signature{
		{},
		{ShoulderSlope: 180, NeckAngle: 0, HeadForward: true},
		{ShoulderSlope: 12.5, NeckAngle: 143.2},
	}
	for _, sig := range sigs {
		for s := MinSensitivity; s <= MaxSensitivity; s++ {
			if got := Evaluate(sig, sig, s); got != Good {
				t.Errorf("Evaluate(%v, %v, %d) = %v, want good", sig, sig, s, got)
			}
		}
	}
}

func TestEvaluate_MonotonicInSensitivity(t *testing.T) {
	baseline := pose.Signature{ShoulderSlope: 2, NeckAngle: 172}

	for shoulder := 0.0; shoulder <= 30; shoulder += 1.5 {
		for neck := 150.0; neck <= 180; neck += 2.5 {
			sig := pose.Signature{ShoulderSlope: shoulder, NeckAngle: neck}
			wasGood := false
			for s := MinSensitivity; s <= MaxSensitivity; s++ {
				got := Evaluate(sig, baseline, s)
				if wasGood && got == Bad {
					t.Fatalf("sig %v turned bad at sensitivity %d after being good", sig, s)
				}
				if got == Good {
					wasGood = true
				}
			}
		}
	}
}

func TestAssess_Diffs(t *testing.T) {
	baseline := pose.Signature{ShoulderSlope: 2, NeckAngle: 172}
	a := Assess(pose.Signature{ShoulderSlope: 11, NeckAngle: 170}, baseline, 8)

	if a.ShoulderDiff != 9 {
		t.Errorf("ShoulderDiff = %v, want 9", a.ShoulderDiff)
	}
	if a.NeckDiff != 2 {
		t.Errorf("NeckDiff = %v, want 2", a.NeckDiff)
	}
	if a.HeadForward {
		t.Error("HeadForward should be false")
	}
	if a.Class != Bad {
		t.Errorf("Class = %v, want bad", a.Class)
	}
}

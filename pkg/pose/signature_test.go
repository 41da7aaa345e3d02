package pose

import (
	"errors"
	"math"
	"strings"
	"testing"
)

// upright is a subject sitting straight, facing the camera.
func upright() Set {
	return Set{
		LeftShoulder:  {Point: Point{0.4, 0.5}, Visibility: 0.99},
		RightShoulder: {Point: Point{0.6, 0.5}, Visibility: 0.99},
		LeftEar:       {Point: Point{0.45, 0.3}, Visibility: 0.9},
		RightEar:      {Point: Point{0.55, 0.3}, Visibility: 0.9},
		LeftHip:       {Point: Point{0.42, 0.8}, Visibility: 0.8},
		RightHip:      {Point: Point{0.58, 0.8}, Visibility: 0.8},
	}
}

func TestComputeSignature_Upright(t *testing.T) {
	sig, err := ComputeSignature(upright())
	if err != nil {
		t.Fatalf("ComputeSignature error: %v", err)
	}

	if math.Abs(sig.ShoulderSlope) > 0.001 {
		t.Errorf("ShoulderSlope = %v, want 0", sig.ShoulderSlope)
	}
	if math.Abs(sig.NeckAngle-180) > 0.001 {
		t.Errorf("NeckAngle = %v, want 180", sig.NeckAngle)
	}
	if sig.HeadForward {
		t.Error("HeadForward should be false for upright posture")
	}
}

func TestComputeSignature_HeadForward(t *testing.T) {
	lms := upright()
	lms[LeftEar] = Landmark{Point: Point{0.52, 0.32}}
	lms[RightEar] = Landmark{Point: Point{0.62, 0.32}}

	sig, err := ComputeSignature(lms)
	if err != nil {
		t.Fatalf("ComputeSignature error: %v", err)
	}
	if !sig.HeadForward {
		t.Error("HeadForward should be true when ears lead shoulders by > 0.05")
	}
	if sig.NeckAngle >= 180 {
		t.Errorf("NeckAngle = %v, want < 180 when leaning", sig.NeckAngle)
	}
}

func TestComputeSignature_HeadInsideMargin(t *testing.T) {
	lms := upright()
	// Ear midpoint at 0.54, inside the 0.05 margin past the shoulders.
	lms[LeftEar] = Landmark{Point: Point{0.49, 0.3}}
	lms[RightEar] = Landmark{Point: Point{0.59, 0.3}}

	sig, err := ComputeSignature(lms)
	if err != nil {
		t.Fatalf("ComputeSignature error: %v", err)
	}
	if sig.HeadForward {
		t.Error("HeadForward should be false inside the margin")
	}
}

func TestComputeSignature_Missing(t *testing.T) {
	for _, name := range Required {
		t.Run(string(name), func(t *testing.T) {
			lms := upright()
			delete(lms, name)

			_, err := ComputeSignature(lms)
			if !errors.Is(err, ErrMissingLandmarks) {
				t.Fatalf("error = %v, want ErrMissingLandmarks", err)
			}
			if !strings.Contains(err.Error(), string(name)) {
				t.Errorf("error %q should name %s", err, name)
			}
		})
	}
}

func TestComputeSignature_NonFinite(t *testing.T) {
	lms := upright()
	lms[LeftHip] = Landmark{Point: Point{math.NaN(), 0.8}}

	if _, err := ComputeSignature(lms); !errors.Is(err, ErrMissingLandmarks) {
		t.Errorf("error = %v, want ErrMissingLandmarks", err)
	}
}

func TestComputeSignature_Degenerate(t *testing.T) {
	lms := upright()
	lms[LeftHip] = Landmark{Point: Point{0.4, 0.5}}
	lms[RightHip] = Landmark{Point: Point{0.6, 0.5}}

	if _, err := ComputeSignature(lms); !errors.Is(err, ErrMissingLandmarks) {
		t.Errorf("error = %v, want ErrMissingLandmarks for coincident hips", err)
	}
}

func TestComputeSignature_Empty(t *testing.T) {
	if _, err := ComputeSignature(nil); !errors.Is(err, ErrMissingLandmarks) {
		t.Errorf("error = %v, want ErrMissingLandmarks", err)
	}
}

func TestSet_Visible(t *testing.T) {
	lms := upright()
	lms[LeftHip] = Landmark{Point: Point{0.42, 0.8}, Visibility: 0.2}
	lms[RightHip] = Landmark{Point: Point{0.58, 0.8}} // not reported

	visible := lms.Visible(0.5)
	if _, ok := visible[LeftHip]; ok {
		t.Error("low-visibility landmark should be dropped")
	}
	if _, ok := visible[RightHip]; !ok {
		t.Error("landmark without visibility should be kept")
	}
	if _, ok := lms[LeftHip]; !ok {
		t.Error("Visible must not modify the original set")
	}
}

func TestFromMediaPipe(t *testing.T) {
	lms := make([]Landmark, 33)
	lms[11] = Landmark{Point: Point{0.4, 0.5}}
	lms[12] = Landmark{Point: Point{0.6, 0.5}}

	set := FromMediaPipe(lms)
	if set[LeftShoulder].X != 0.4 || set[RightShoulder].X != 0.6 {
		t.Errorf("shoulders not mapped: %+v", set)
	}
	if len(set) != len(Required) {
		t.Errorf("len = %d, want %d", len(set), len(Required))
	}

	partial := FromMediaPipe(lms[:12])
	if _, ok := partial[RightShoulder]; ok {
		t.Error("short slice should not produce right shoulder")
	}
}

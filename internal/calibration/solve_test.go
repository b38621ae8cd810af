package calibration

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSolveRecoversRigidTransform(t *testing.T) {
	want := Offset{X: 2.5, Z: -1, Theta: math.Pi / 6}
	input := []Point{{0, 0}, {1, 0}, {0, 2}, {-3, 1}}
	fixed := make([]Point, len(input))
	for i, p := range input {
		fixed[i] = want.Apply(p)
	}

	got, err := Solve(fixed, input)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !approx(got.X, want.X) || !approx(got.Z, want.Z) || !approx(got.Theta, want.Theta) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSolveSinglePairIsTranslation(t *testing.T) {
	got, err := Solve([]Point{{4, 5}}, []Point{{1, 1}})
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if got != (Offset{X: 3, Z: 4}) {
		t.Fatalf("unexpected offset %+v", got)
	}
}

func TestSolveRejectsBadInput(t *testing.T) {
	if _, err := Solve(nil, nil); !errors.Is(err, ErrPointCount) {
		t.Fatalf("expected ErrPointCount for empty sets, got %v", err)
	}
	if _, err := Solve([]Point{{0, 0}}, []Point{{0, 0}, {1, 1}}); !errors.Is(err, ErrPointCount) {
		t.Fatalf("expected ErrPointCount for mismatched sets, got %v", err)
	}
	if _, err := Solve([]Point{{0, 0}, {1, 1}}, []Point{{2, 2}, {2, 2}}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
}

func TestSolveRejectsOverflowingCoordinates(t *testing.T) {
	fixed := []Point{{1e308, 0}, {1.7e308, 1}}
	input := []Point{{1e308, 0}, {-1.7e308, 5}}
	if _, err := Solve(fixed, input); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate for overflowing input, got %v", err)
	}
	if _, err := Solve([]Point{{1.7e308, 0}}, []Point{{-1.7e308, 0}}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate for overflowing translation, got %v", err)
	}
}

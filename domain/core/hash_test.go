package core

import (
	"math"
	"testing"
)

// TestComputePointHashIsOrderIndependent tests that map iteration order never leaks into the hash
func TestComputePointHashIsOrderIndependent(t *testing.T) {
	a := ComputePointHash(map[string]float64{"x": 1, "y": 2, "tag": -1})
	b := ComputePointHash(map[string]float64{"tag": -1, "y": 2, "x": 1})
	if a != b {
		t.Errorf("Expected identical hashes, got %s and %s", a, b)
	}
}

// TestComputePointHashDistinguishesValues tests value sensitivity
func TestComputePointHashDistinguishesValues(t *testing.T) {
	cases := []struct {
		name string
		a, b map[string]float64
	}{
		{"different value", map[string]float64{"x": 1}, map[string]float64{"x": 2}},
		{"different name", map[string]float64{"x": 1}, map[string]float64{"y": 1}},
		{"signed zero", map[string]float64{"x": 0}, map[string]float64{"x": math.Copysign(0, -1)}},
		{"extra key", map[string]float64{"x": 1}, map[string]float64{"x": 1, "y": 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ComputePointHash(tc.a) == ComputePointHash(tc.b) {
				t.Errorf("Expected hashes to differ for %v and %v", tc.a, tc.b)
			}
		})
	}
}

// TestComputeBoundaryHashOrderMatters tests that constraint order is part of the boundary identity
func TestComputeBoundaryHashOrderMatters(t *testing.T) {
	a := ComputeBoundaryHash([]string{"x[0,1]", "y[0,2]"})
	b := ComputeBoundaryHash([]string{"y[0,2]", "x[0,1]"})
	if a == b {
		t.Error("Expected boundary hash to depend on constraint order")
	}
	if a.String() == "" || Hash(a).IsEmpty() {
		t.Error("Expected non-empty boundary hash")
	}
}

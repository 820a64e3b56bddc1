package main

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestParsePoints(t *testing.T) {
	points, err := parsePoints("0,0,0; 3, 4 ,0")
	if err != nil {
		t.Fatalf("Failed to parse points: %v", err)
	}
	if len(points) != 2 || points[1] != (r3.Vec{X: 3, Y: 4}) {
		t.Errorf("Unexpected points %v", points)
	}

	if points, err := parsePoints("1,0,0;0,0,0;0,1,0"); err != nil || len(points) != 3 {
		t.Errorf("Expected three points, got %v (%v)", points, err)
	}

	for _, bad := range []string{"", "1,2,3", "1,2;3,4", "a,b,c;1,2,3", "1,2,3;1,2,3;1,2,3;1,2,3"} {
		if _, err := parsePoints(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

package fixedpoint

import "testing"

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 63, -63, 1000} {
		if got := ToIntTrunc(FromInt(n)); got != n {
			t.Errorf("FromInt(%d) round-trip = %d", n, got)
		}
	}
}

func TestNearest(t *testing.T) {
	cases := []struct {
		x    F
		want int
	}{
		{FromInt(2), 2},
		{FromInt(2) + one/2, 3},
		{FromInt(2) + one/2 - 1, 2},
		{-(FromInt(2) + one/2), -3},
	}
	for _, c := range cases {
		if got := ToIntNearest(c.x); got != c.want {
			t.Errorf("ToIntNearest(%v) = %d, want %d", c.x, got, c.want)
		}
	}
}

func TestMulDiv(t *testing.T) {
	x := FromInt(10)
	y := FromInt(4)
	if got := ToIntTrunc(Mul(x, y)); got != 40 {
		t.Errorf("Mul(10,4) = %d, want 40", got)
	}
	if got := ToIntTrunc(Div(x, y)); got != 2 {
		t.Errorf("Div(10,4) = %d, want 2", got)
	}
}

func TestPercent100(t *testing.T) {
	x := Div(FromInt(1), FromInt(3))
	if got := Percent100(x); got != 33 {
		t.Errorf("Percent100(1/3) = %d, want 33", got)
	}
}

package numeric_test

import (
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/numeric"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"3", "3"},
		{"  -2.50 ", "-2.5"},
		{"0.1", "0.1"},
		{"1e2", "100"},
	} {
		n, err := numeric.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got := n.String(); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "   ", "abc", "1.2.3"} {
		if _, err := numeric.Parse(bad); err == nil {
			t.Errorf("Parse(%q): want error", bad)
		}
	}
}

func TestExactDecimalArithmetic(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, not 0.30000000000000004.
	a := numeric.MustParse("0.1")
	b := numeric.MustParse("0.2")
	if got := a.Plus(b).String(); got != "0.3" {
		t.Errorf("0.1 + 0.2 = %s, want 0.3", got)
	}
	if a.Plus(b).ComparedTo(numeric.MustParse("0.3")) != 0 {
		t.Error("0.1 + 0.2 does not compare equal to 0.3")
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	for _, tc := range []struct {
		in     string
		places int32
		want   string
	}{
		{"2.5", 0, "3"},
		{"-2.5", 0, "-3"},
		{"1.25", 1, "1.3"},
		{"1.005", 2, "1.01"},
	} {
		got := numeric.MustParse(tc.in).Round(tc.places).String()
		if got != tc.want {
			t.Errorf("Round(%s, %d) = %s, want %s", tc.in, tc.places, got, tc.want)
		}
	}
}

func TestGCDAndLCM(t *testing.T) {
	for _, tc := range []struct {
		a, b, gcd, lcm string
	}{
		{"12", "18", "6", "36"},
		{"7", "13", "1", "91"},
		{"0", "5", "5", "0"},
		{"0", "0", "0", "0"},
	} {
		a, b := numeric.MustParse(tc.a), numeric.MustParse(tc.b)
		if got := numeric.GCD(a, b).String(); got != tc.gcd {
			t.Errorf("GCD(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.gcd)
		}
		if got := numeric.LCM(a, b).String(); got != tc.lcm {
			t.Errorf("LCM(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.lcm)
		}
	}
}

func TestGeneralizedGCDLCM(t *testing.T) {
	nums := []numeric.Number{
		numeric.FromInt(4), numeric.FromInt(6), numeric.FromInt(10),
	}
	if got := numeric.GeneralizedGCD(nums).String(); got != "2" {
		t.Errorf("GeneralizedGCD = %s, want 2", got)
	}
	if got := numeric.GeneralizedLCM(nums).String(); got != "60" {
		t.Errorf("GeneralizedLCM = %s, want 60", got)
	}

	withZero := append(nums, numeric.Zero())
	if got := numeric.GeneralizedLCM(withZero); !got.IsZero() {
		t.Errorf("GeneralizedLCM with zero operand = %s, want 0", got)
	}
}

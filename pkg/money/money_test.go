package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"66000", "66000"},
		{"0.125", "0.13"},
	}
	for _, c := range cases {
		got := Round(decimal.RequireFromString(c.in))
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("Round(%s): expected %s, got %s", c.in, c.want, got)
		}
	}
}

func TestApplyPercentage(t *testing.T) {
	got := ApplyPercentage(decimal.NewFromInt(60000), decimal.NewFromInt(10))
	if !got.Equal(decimal.NewFromInt(66000)) {
		t.Errorf("Expected 66000, got %s", got)
	}

	// 333.33 * 1.075 = 358.329750 -> 358.33
	got = ApplyPercentage(decimal.RequireFromString("333.33"), decimal.RequireFromString("7.5"))
	if !got.Equal(decimal.RequireFromString("358.33")) {
		t.Errorf("Expected 358.33, got %s", got)
	}
}

func TestSplit(t *testing.T) {
	cases := []struct {
		total string
		n     int
		want  []string
	}{
		{"66000", 6, []string{"11000", "11000", "11000", "11000", "11000", "11000"}},
		{"100", 3, []string{"33.33", "33.33", "33.34"}},
		{"0.05", 3, []string{"0.01", "0.01", "0.03"}},
		{"1000.01", 1, []string{"1000.01"}},
		{"358.33", 7, []string{"51.19", "51.19", "51.19", "51.19", "51.19", "51.19", "51.19"}},
	}

	for _, c := range cases {
		total := decimal.RequireFromString(c.total)
		shares, err := Split(total, c.n)
		if err != nil {
			t.Fatalf("Split(%s, %d) failed: %v", c.total, c.n, err)
		}
		if len(shares) != c.n {
			t.Fatalf("Expected %d shares, got %d", c.n, len(shares))
		}
		for i, want := range c.want {
			if !shares[i].Equal(decimal.RequireFromString(want)) {
				t.Errorf("Split(%s, %d)[%d]: expected %s, got %s", c.total, c.n, i, want, shares[i])
			}
		}
		if sum := Sum(shares...); !sum.Equal(total) {
			t.Errorf("Split(%s, %d) sums to %s", c.total, c.n, sum)
		}
	}
}

func TestSplitSumsExactlyForManyTerms(t *testing.T) {
	total := decimal.RequireFromString("12345.67")
	for n := 1; n <= 60; n++ {
		shares, err := Split(total, n)
		if err != nil {
			t.Fatalf("Split failed for n=%d: %v", n, err)
		}
		if sum := Sum(shares...); !sum.Equal(total) {
			t.Errorf("n=%d: expected sum %s, got %s", n, total, sum)
		}
		for i := 0; i < n-1; i++ {
			if !shares[i].Equal(shares[0]) {
				t.Errorf("n=%d: share %d differs from first share", n, i)
			}
		}
		if shares[n-1].LessThan(shares[0]) {
			t.Errorf("n=%d: last share %s smaller than %s", n, shares[n-1], shares[0])
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	if _, err := Split(decimal.NewFromInt(10), 0); err == nil {
		t.Error("Expected error for zero parts")
	}
	if _, err := Split(decimal.NewFromInt(-10), 2); err == nil {
		t.Error("Expected error for negative total")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, whole, want string
	}{
		{"11000", "66000", "16.67"},
		{"0", "66000", "0"},
		{"66500", "66000", "100"},
		{"10", "0", "0"},
	}
	for _, c := range cases {
		got := Percent(decimal.RequireFromString(c.part), decimal.RequireFromString(c.whole))
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("Percent(%s, %s): expected %s, got %s", c.part, c.whole, c.want, got)
		}
	}
}

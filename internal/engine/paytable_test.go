package engine

import (
	"testing"

	decimal "github.com/shopspring/decimal"
)

func TestMultiplierPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		symbols []int
		pattern string
		mult    string
	}{
		{"five of a kind", []int{4, 4, 4, 4, 4}, "five_of_a_kind", "88.88"},
		{"four of a kind", []int{2, 2, 2, 2, 7}, "four_of_a_kind", "16.18"},
		{"full house", []int{0, 0, 0, 1, 1}, "full_house", "4.24"},
		{"full house reversed", []int{5, 5, 3, 3, 3}, "full_house", "4.24"},
		{"two pair beats one pair", []int{1, 1, 2, 2, 6}, "two_pair", "2.4"},
		{"three of a kind", []int{3, 3, 3, 0, 7}, "three_of_a_kind", "1.8"},
		{"one pair", []int{6, 6, 0, 2, 4}, "one_pair", "0.4"},
		{"no match", []int{0, 1, 2, 3, 4}, "no_match", "0"},
	}
	for _, c := range cases {
		mult, pattern := Multiplier(c.symbols)
		if pattern != c.pattern {
			t.Fatalf("%s: pattern=%s, want %s", c.name, pattern, c.pattern)
		}
		want, _ := decimal.NewFromString(c.mult)
		if !mult.Equal(want) {
			t.Fatalf("%s: multiplier=%s, want %s", c.name, mult, want)
		}
	}
}

// 两对的形态 [a,a,b,b,c] 最大频次是 2，必须命中 two_pair 而不是 one_pair
func TestTwoPairNotMiscategorized(t *testing.T) {
	mult, pattern := Multiplier([]int{7, 7, 3, 3, 1})
	if pattern != "two_pair" {
		t.Fatalf("pattern=%s, want two_pair", pattern)
	}
	if !mult.Equal(decimal.NewFromFloat(2.40)) {
		t.Fatalf("multiplier=%s, want 2.4", mult)
	}
}

func TestCountShape(t *testing.T) {
	shape := countShape([]int{5, 0, 5, 0, 5})
	if len(shape) != 2 || shape[0] != 3 || shape[1] != 2 {
		t.Fatalf("shape=%v, want [3 2]", shape)
	}
}

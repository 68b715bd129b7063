package helper

import "testing"

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "10", "10.5", "10.55", "999999.99", " 10 "}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("expected %q to be valid money format", s)
		}
	}

	invalid := []string{"", "-10", "10.555", "01", "1,000", "abc", "10.", ".5"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("expected %q to be invalid money format", s)
		}
	}
}

func TestValidateSpin(t *testing.T) {
	sp := SpinParsed{StakeAmount: " 10.00 "}
	if ok, msg := ValidateSpin(&sp); !ok {
		t.Fatalf("validate failed: %s", msg)
	}
	if sp.StakeAmount != "10.00" {
		t.Fatalf("expected trimmed stake, got %q", sp.StakeAmount)
	}

	empty := SpinParsed{}
	if ok, _ := ValidateSpin(&empty); ok {
		t.Fatalf("empty stake_amount should fail validation")
	}

	long := SpinParsed{StakeAmount: "123456789012345678901234567890123"}
	if ok, _ := ValidateSpin(&long); ok {
		t.Fatalf("overlong stake_amount should fail validation")
	}
}

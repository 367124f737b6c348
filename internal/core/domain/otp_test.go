package domain

import (
	"testing"
	"time"
)

func TestOTPChallengeMatches(t *testing.T) {
	issued := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	challenge := NewOTPChallenge("482913", issued, 10*time.Minute)

	if challenge.CodeHash == "482913" || challenge.CodeHash != HashOTPCode("482913") {
		t.Fatalf("expected only the digest to be stored, got %q", challenge.CodeHash)
	}
	if !challenge.Matches("482913", issued.Add(9*time.Minute)) {
		t.Fatalf("expected the code to match inside the window")
	}
	if challenge.Matches("000000", issued.Add(time.Minute)) {
		t.Fatalf("expected a wrong code to fail")
	}
	if challenge.Matches("482913", issued.Add(10*time.Minute)) {
		t.Fatalf("expected the code to expire at the deadline")
	}
	if (OTPChallenge{}).Matches("", issued) {
		t.Fatalf("expected an empty challenge to never match")
	}
}

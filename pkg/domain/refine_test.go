package domain

import "testing"

func TestRefinePrice(t *testing.T) {
	tickSize := MustDecimal("0.01")
	price := MustDecimal("12345.6789")

	got := RefinePrice(price, tickSize)
	if want := "12345.67"; String(got) != want {
		t.Fatalf("RefinePrice(%s, %s) = %s, want %s", String(price), String(tickSize), String(got), want)
	}
}

func TestRefineQuantity(t *testing.T) {
	stepSize := MustDecimal("0.001")
	qty := MustDecimal("1.23456")

	got := RefineQuantity(qty, stepSize)
	if want := "1.234"; String(got) != want {
		t.Fatalf("RefineQuantity(%s, %s) = %s, want %s", String(qty), String(stepSize), String(got), want)
	}
}

func TestRefineQuantityNilStepLeavesValueUnchanged(t *testing.T) {
	qty := MustDecimal("1.23456")
	got := RefineQuantity(qty, nil)
	if !Equal(got, qty) {
		t.Fatalf("RefineQuantity with nil step = %s, want unchanged %s", String(got), String(qty))
	}
}

func TestRefinePriceExactMultipleUnchanged(t *testing.T) {
	tickSize := MustDecimal("0.5")
	price := MustDecimal("100.0")
	got := RefinePrice(price, tickSize)
	if Cmp(got, MustDecimal("100.0")) != 0 {
		t.Fatalf("RefinePrice(%s, %s) = %s, want 100.0", String(price), String(tickSize), String(got))
	}
}

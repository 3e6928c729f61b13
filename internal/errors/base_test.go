package errors

import "testing"

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "Hello, Wrapped!")
	if err.Error() != "Hello, Wrapped!, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errWrapped, "order %s leg %d", "abc", 2)
	if err.Error() != "order abc leg 2, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}

	if Wrapf(nil, "ignored") != nil {
		t.Fatal("wrapping nil must stay nil")
	}
}

func TestIsSeesThroughWrap(t *testing.T) {
	err := Wrap(Wrapf(errWrapped, "inner"), "outer")
	if !Is(err, errWrapped) {
		t.Fatalf("expected chain to contain sentinel: %+v", err)
	}
}

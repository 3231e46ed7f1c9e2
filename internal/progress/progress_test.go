package progress

import (
	"testing"
	"time"
)

func TestPercentageZeroTotal(t *testing.T) {
	if p := Percentage(0, 0); p != 0 {
		t.Fatalf("expected 0, got %v", p)
	}
}

func TestPercentageHalfway(t *testing.T) {
	if p := Percentage(5, 10); p != 50 {
		t.Fatalf("expected 50, got %v", p)
	}
}

func TestAvgTaskSecondsUndefinedWithoutStart(t *testing.T) {
	if _, ok := AvgTaskSeconds(nil, time.Now(), 5); ok {
		t.Fatal("expected undefined average without a start time")
	}
}

func TestAvgTaskSecondsUndefinedWithZeroCompleted(t *testing.T) {
	start := time.Now().Add(-10 * time.Minute)
	if _, ok := AvgTaskSeconds(&start, time.Now(), 0); ok {
		t.Fatal("expected undefined average with zero completed")
	}
}

func TestAvgTaskSecondsComputed(t *testing.T) {
	start := time.Now().Add(-100 * time.Second)
	avg, ok := AvgTaskSeconds(&start, start.Add(100*time.Second), 10)
	if !ok {
		t.Fatal("expected defined average")
	}
	if avg < 9.9 || avg > 10.1 {
		t.Fatalf("expected ~10s average, got %v", avg)
	}
}

func TestETASecondsUndefinedWhenAvgUndefined(t *testing.T) {
	if _, ok := ETASeconds(0, false, 5, 10); ok {
		t.Fatal("expected undefined ETA when average is undefined")
	}
}

func TestETASecondsUndefinedWhenComplete(t *testing.T) {
	if _, ok := ETASeconds(10, true, 10, 10); ok {
		t.Fatal("expected undefined ETA when nothing remains")
	}
}

func TestETASecondsComputed(t *testing.T) {
	eta, ok := ETASeconds(10, true, 5, 10)
	if !ok {
		t.Fatal("expected defined ETA")
	}
	if eta != 50 {
		t.Fatalf("expected 50, got %v", eta)
	}
}

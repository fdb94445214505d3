package location

import (
	"context"
	"testing"
	"time"

	"terraclaim/internal/model"
)

func point(lat, lng float64) model.TimedPoint {
	return model.TimedPoint{
		GeoPoint:  model.GeoPoint{Latitude: lat, Longitude: lng},
		Timestamp: time.Now(),
		Speed:     -1,
		Accuracy:  5,
	}
}

func TestPushSourceDelivery(t *testing.T) {
	s := NewPushSource(4)
	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}

	ch, err := s.StartUpdating()
	if err != nil {
		t.Fatalf("StartUpdating: %v", err)
	}

	s.Push(point(1, 2))
	select {
	case got := <-ch:
		if got.Latitude != 1 || got.Longitude != 2 {
			t.Errorf("got %+v", got)
		}
	default:
		t.Fatal("sample not delivered")
	}
}

func TestPushSourceDropsWhenFull(t *testing.T) {
	s := NewPushSource(2)
	if _, err := s.StartUpdating(); err != nil {
		t.Fatalf("StartUpdating: %v", err)
	}

	s.Push(point(0, 0))
	s.Push(point(0, 1))
	s.Push(point(0, 2)) // buffer full, must not block

	if got := s.Dropped.Load(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestPushSourcePushBeforeStart(t *testing.T) {
	s := NewPushSource(2)
	s.Push(point(0, 0)) // no-op, no panic
	if got := s.Dropped.Load(); got != 0 {
		t.Errorf("dropped = %d, want 0", got)
	}
}

func TestPushSourceRestartGetsFreshChannel(t *testing.T) {
	s := NewPushSource(2)
	first, _ := s.StartUpdating()
	s.StopUpdating()

	if _, ok := <-first; ok {
		t.Fatal("stopped channel must be closed")
	}
	s.Push(point(0, 0)) // between stop and restart: dropped silently

	second, err := s.StartUpdating()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	s.Push(point(3, 4))
	select {
	case got, ok := <-second:
		if !ok {
			t.Fatal("restarted channel is closed")
		}
		if got.Latitude != 3 {
			t.Errorf("got %+v", got)
		}
	default:
		t.Fatal("restarted source did not deliver")
	}

	s.StopUpdating()
	s.StopUpdating() // double stop is safe
}

func TestPushSourceStartIsIdempotent(t *testing.T) {
	s := NewPushSource(2)
	first, _ := s.StartUpdating()
	second, _ := s.StartUpdating()

	s.Push(point(1, 1))
	select {
	case <-first:
	default:
		t.Error("first channel did not receive")
	}
	// Both calls hand out the same stream.
	s.Push(point(2, 2))
	select {
	case got := <-second:
		if got.Latitude != 2 {
			t.Errorf("got %+v", got)
		}
	default:
		t.Error("second channel did not receive")
	}
}

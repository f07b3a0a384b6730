package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type spyDeleter struct {
	calls []struct{ chatID, messageID int64 }
	err   error
}

func (s *spyDeleter) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	s.calls = append(s.calls, struct{ chatID, messageID int64 }{chatID, messageID})
	return s.err
}

func TestScheduleRejectsOutOfRangeDelay(t *testing.T) {
	spy := &spyDeleter{}
	d := NewDeletor(spy, testLogger())

	for _, delay := range []int{-1, 901, 100000} {
		err := d.Schedule(delay, 1, 2)
		if !errors.Is(err, ErrDelayRange) {
			t.Errorf("Schedule(%d) err = %v, want ErrDelayRange", delay, err)
		}
	}
	if len(spy.calls) != 0 {
		t.Errorf("rejected delays still issued %d deletes", len(spy.calls))
	}
}

func TestScheduleZeroDeletesImmediately(t *testing.T) {
	spy := &spyDeleter{}
	d := NewDeletor(spy, testLogger())
	d.after = func(time.Duration, func()) *time.Timer {
		t.Fatal("zero delay must not arm a timer")
		return nil
	}

	if err := d.Schedule(0, 10, 20); err != nil {
		t.Fatalf("Schedule(0) err = %v", err)
	}
	if len(spy.calls) != 1 || spy.calls[0].chatID != 10 || spy.calls[0].messageID != 20 {
		t.Fatalf("calls = %+v, want one delete of (10, 20)", spy.calls)
	}
}

func TestSchedulePositiveArmsTimer(t *testing.T) {
	spy := &spyDeleter{}
	d := NewDeletor(spy, testLogger())

	var armed time.Duration
	d.after = func(dur time.Duration, fn func()) *time.Timer {
		armed = dur
		fn() // fire right away to observe the deferred delete
		return nil
	}

	if err := d.Schedule(5, 3, 4); err != nil {
		t.Fatalf("Schedule(5) err = %v", err)
	}
	if armed != 5*time.Second {
		t.Errorf("timer armed for %v, want 5s", armed)
	}
	if len(spy.calls) != 1 || spy.calls[0].chatID != 3 || spy.calls[0].messageID != 4 {
		t.Fatalf("calls = %+v, want one delete of (3, 4)", spy.calls)
	}
}

func TestScheduleMaxDelayAccepted(t *testing.T) {
	spy := &spyDeleter{}
	d := NewDeletor(spy, testLogger())
	d.after = func(time.Duration, func()) *time.Timer { return nil }

	if err := d.Schedule(900, 1, 2); err != nil {
		t.Fatalf("Schedule(900) err = %v", err)
	}
}

func TestScheduleDeleteFailureOnlyLogged(t *testing.T) {
	spy := &spyDeleter{err: errors.New("message already gone")}
	d := NewDeletor(spy, testLogger())

	if err := d.Schedule(0, 1, 2); err != nil {
		t.Fatalf("Schedule(0) err = %v, want nil despite delete failure", err)
	}
}

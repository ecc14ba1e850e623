package pipeline

import (
	"errors"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("run-1")

	if lc.Stage() != StageReceived {
		t.Errorf("expected StageReceived, got %v", lc.Stage())
	}
	if lc.RunID() != "run-1" {
		t.Errorf("expected run-1, got %v", lc.RunID())
	}
	if lc.Err() != nil {
		t.Errorf("expected no error, got %v", lc.Err())
	}
}

func TestLifecycle_AdvanceInOrder(t *testing.T) {
	lc := NewLifecycle("run-1")

	for _, s := range []Stage{StageSegmented, StageMerged, StageEnriched, StageTrended, StageAssembled} {
		if err := lc.Advance(s); err != nil {
			t.Fatalf("advance to %v: %v", s, err)
		}
	}
	if !lc.Stage().IsTerminal() {
		t.Error("expected terminal stage after ASSEMBLED")
	}
}

func TestLifecycle_AdvanceOutOfOrder(t *testing.T) {
	tests := []struct {
		name string
		from []Stage
		to   Stage
	}{
		{"skip", nil, StageMerged},
		{"repeat", []Stage{StageSegmented}, StageSegmented},
		{"backwards", []Stage{StageSegmented, StageMerged}, StageSegmented},
		{"to failed", nil, StageFailed},
		{"after assembled", []Stage{StageSegmented, StageMerged, StageEnriched, StageTrended, StageAssembled}, StageAssembled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle("run-1")
			for _, s := range tt.from {
				if err := lc.Advance(s); err != nil {
					t.Fatalf("setup advance to %v: %v", s, err)
				}
			}
			if err := lc.Advance(tt.to); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestLifecycle_Fail(t *testing.T) {
	lc := NewLifecycle("run-1")
	_ = lc.Advance(StageSegmented)

	cause := errors.New("boom")
	if !lc.Fail(cause) {
		t.Fatal("expected Fail to succeed")
	}
	if lc.Stage() != StageFailed {
		t.Errorf("expected StageFailed, got %v", lc.Stage())
	}
	if !errors.Is(lc.Err(), cause) {
		t.Errorf("expected cause to be kept, got %v", lc.Err())
	}
	if lc.Fail(errors.New("again")) {
		t.Error("expected second Fail to return false")
	}
	if err := lc.Advance(StageMerged); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after failure, got %v", err)
	}
}

func TestLifecycle_FailAfterAssembled(t *testing.T) {
	lc := NewLifecycle("run-1")
	for s := StageSegmented; s <= StageAssembled; s++ {
		_ = lc.Advance(s)
	}
	if lc.Fail(errors.New("late")) {
		t.Error("expected Fail on an assembled run to return false")
	}
	if lc.Stage() != StageAssembled {
		t.Errorf("expected StageAssembled, got %v", lc.Stage())
	}
}

func TestLifecycle_ConcurrentFail(t *testing.T) {
	lc := NewLifecycle("run-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.Fail(errors.New("x")) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("expected exactly one Fail to win, got %d", won)
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageReceived, "RECEIVED"},
		{StageMerged, "MERGED"},
		{StageFailed, "FAILED"},
		{Stage(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

package game

import (
	"math"
	"testing"

	"rtc-game/protocol"
)

func clipDurations(clip protocol.MovementState) float64 {
	return map[protocol.MovementState]float64{
		protocol.Idle: 2.0,
		protocol.Walk: 1.0,
		protocol.Run:  0.5,
	}[clip]
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnimator_RephaseWalkToRun(t *testing.T) {
	a := NewAnimator(clipDurations, protocol.Walk)
	a.Update(0.4)
	if !near(a.Time(protocol.Walk), 0.4) {
		t.Fatalf("walk time = %v, want 0.4", a.Time(protocol.Walk))
	}

	if rephase := a.Transition(protocol.Run); !rephase {
		t.Error("Walk to Run should re-phase")
	}
	if !near(a.Time(protocol.Run), 0.2) {
		t.Errorf("run time = %v, want 0.2", a.Time(protocol.Run))
	}
}

func TestAnimator_IdleDoesNotRephase(t *testing.T) {
	tests := []struct {
		from, to protocol.MovementState
	}{
		{protocol.Idle, protocol.Walk},
		{protocol.Run, protocol.Idle},
		{protocol.Idle, protocol.Run},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			a := NewAnimator(clipDurations, tt.from)
			a.Update(0.3)
			if rephase := a.Transition(tt.to); rephase {
				t.Error("transition re-phased")
			}
			if a.Time(tt.to) != 0 {
				t.Errorf("target time = %v, want 0", a.Time(tt.to))
			}
		})
	}
}

func TestAnimator_Crossfade(t *testing.T) {
	a := NewAnimator(clipDurations, protocol.Idle)
	a.Transition(protocol.Walk)

	a.Update(FadeDuration / 2)
	if !near(a.Weight(protocol.Walk), 0.5) || !near(a.Weight(protocol.Idle), 0.5) {
		t.Errorf("halfway weights idle=%v walk=%v", a.Weight(protocol.Idle), a.Weight(protocol.Walk))
	}

	a.Update(FadeDuration)
	if a.Weight(protocol.Walk) != 1 || a.Weight(protocol.Idle) != 0 {
		t.Errorf("final weights idle=%v walk=%v", a.Weight(protocol.Idle), a.Weight(protocol.Walk))
	}
	if a.Fading() {
		t.Error("still fading after the fade window")
	}
}

func TestAnimator_InterruptRestartsFromCurrentWeights(t *testing.T) {
	a := NewAnimator(clipDurations, protocol.Idle)
	a.Transition(protocol.Walk)
	a.Update(FadeDuration / 2)

	a.Transition(protocol.Run)
	if a.Active() != protocol.Run {
		t.Fatalf("active = %v, want Run", a.Active())
	}
	// Nothing jumps at the moment of interruption.
	if !near(a.Weight(protocol.Idle), 0.5) || !near(a.Weight(protocol.Walk), 0.5) || a.Weight(protocol.Run) != 0 {
		t.Errorf("weights after interrupt idle=%v walk=%v run=%v",
			a.Weight(protocol.Idle), a.Weight(protocol.Walk), a.Weight(protocol.Run))
	}

	a.Update(FadeDuration / 2)
	if !near(a.Weight(protocol.Idle), 0.25) || !near(a.Weight(protocol.Walk), 0.25) || !near(a.Weight(protocol.Run), 0.5) {
		t.Errorf("weights mid fade idle=%v walk=%v run=%v",
			a.Weight(protocol.Idle), a.Weight(protocol.Walk), a.Weight(protocol.Run))
	}

	a.Update(FadeDuration)
	if a.Weight(protocol.Run) != 1 || a.Weight(protocol.Walk) != 0 || a.Weight(protocol.Idle) != 0 {
		t.Errorf("final weights idle=%v walk=%v run=%v",
			a.Weight(protocol.Idle), a.Weight(protocol.Walk), a.Weight(protocol.Run))
	}
}

func TestAnimator_SameStateIsNoop(t *testing.T) {
	a := NewAnimator(clipDurations, protocol.Walk)
	if a.Transition(protocol.Walk) || a.Fading() {
		t.Error("transition to the active clip started a fade")
	}
}

func TestAnimator_TimeWraps(t *testing.T) {
	a := NewAnimator(clipDurations, protocol.Run)
	a.Update(0.75)
	if !near(a.Time(protocol.Run), 0.25) {
		t.Errorf("run time = %v, want 0.25", a.Time(protocol.Run))
	}
	if a.Time(protocol.Idle) != 0 {
		t.Errorf("silent clip advanced to %v", a.Time(protocol.Idle))
	}
}

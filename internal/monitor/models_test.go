package monitor

import (
	"testing"
)

func TestMonitoredRoute_Next_AlertOnThresholdBreach(t *testing.T) {
	m := &MonitoredRoute{BaselineScore: 20, Threshold: 50, State: StateNormal}

	// Delta exactly at the threshold does not alert.
	state, transition := m.Next(70)
	if state != StateNormal || transition != TransitionNone {
		t.Errorf("delta == threshold: expected NORMAL/none, got %s/%d", state, transition)
	}

	// Delta past the threshold alerts.
	state, transition = m.Next(71)
	if state != StateAlerted || transition != TransitionAlert {
		t.Errorf("delta > threshold: expected ALERTED/alert, got %s/%d", state, transition)
	}
}

func TestMonitoredRoute_Next_NoDuplicateAlerts(t *testing.T) {
	m := &MonitoredRoute{BaselineScore: 20, Threshold: 50, State: StateAlerted}

	// Still above threshold: no transition, no second alert.
	state, transition := m.Next(90)
	if state != StateAlerted || transition != TransitionNone {
		t.Errorf("expected ALERTED/none, got %s/%d", state, transition)
	}
}

func TestMonitoredRoute_Next_AllClearOnReturn(t *testing.T) {
	m := &MonitoredRoute{BaselineScore: 20, Threshold: 50, State: StateAlerted}

	state, transition := m.Next(60)
	if state != StateNormal || transition != TransitionAllClear {
		t.Errorf("expected NORMAL/all-clear, got %s/%d", state, transition)
	}
}

func TestMonitoredRoute_Next_NormalStaysQuiet(t *testing.T) {
	m := &MonitoredRoute{BaselineScore: 20, Threshold: 50, State: StateNormal}

	for _, score := range []float64{0, 20, 45, 70} {
		state, transition := m.Next(score)
		if state != StateNormal || transition != TransitionNone {
			t.Errorf("score %.0f: expected NORMAL/none, got %s/%d", score, state, transition)
		}
	}
}

func TestMonitoredRoute_Next_AllClearBoundaryInclusive(t *testing.T) {
	m := &MonitoredRoute{BaselineScore: 20, Threshold: 50, State: StateAlerted}

	// Delta exactly at the threshold clears.
	state, transition := m.Next(70)
	if state != StateNormal || transition != TransitionAllClear {
		t.Errorf("delta == threshold: expected NORMAL/all-clear, got %s/%d", state, transition)
	}
}

package campaign

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{Pending, InProgress, true},
		{Pending, Cancelled, true},
		{Pending, Completed, false},
		{Scheduled, InProgress, true},
		{Scheduled, Pending, true},
		{InProgress, Paused, true},
		{InProgress, Completed, true},
		{InProgress, Failed, true},
		{InProgress, Cancelled, true},
		{InProgress, Pending, true},
		{InProgress, Scheduled, true},
		{Paused, InProgress, true},
		{Paused, Cancelled, true},
		{Paused, Completed, false},
		{Completed, InProgress, false},
		{Failed, Pending, false},
		{Cancelled, InProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []Status{Pending, Scheduled, InProgress, Paused, Completed, Failed, Cancelled}
	for _, from := range []Status{Completed, Failed, Cancelled} {
		if !from.IsTerminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s should not transition to %s", from, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("in-progress"); err != nil {
		t.Errorf("ParseStatus(in-progress) failed: %v", err)
	}
	if _, err := ParseStatus("running"); err == nil {
		t.Error("ParseStatus(running) should fail")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Error("ParseStatus of empty string should fail")
	}
}

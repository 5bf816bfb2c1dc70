package model

import "testing"

func TestParseGameID(t *testing.T) {
	cases := []struct {
		in      string
		want    GameID
		wantErr bool
	}{
		{"1", 1, false},
		{"4711", 4711, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseGameID(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseGameID(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseGameID(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAction_StringRoundTrip(t *testing.T) {
	for _, a := range []Action{ActionUnknown, ActionNone, ActionHost, ActionMaster, ActionScheduleChange} {
		got, err := ParseAction(a.String())
		if err != nil || got != a {
			t.Fatalf("ParseAction(%q) = %v, %v; want %v", a.String(), got, err, a)
		}
	}
	if _, err := ParseAction("explode"); err == nil {
		t.Fatal("ParseAction should reject unknown names")
	}
}

func TestTurnStatus_IsFinal(t *testing.T) {
	cases := []struct {
		name   string
		status TurnStatus
		want   bool
	}{
		{"missing", TurnMissing, false},
		{"green", TurnGreen, true},
		{"yellow", TurnYellow, true},
		{"red", TurnRed, false},
		{"bad", TurnBad, false},
		{"stale", TurnStale, false},
		{"temporary green", TurnGreen | TurnTemporary, false},
		{"temporary missing", TurnMissing | TurnTemporary, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.IsFinal(); got != tc.want {
				t.Fatalf("%d.IsFinal() = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestTurnStatus_State(t *testing.T) {
	s := TurnYellow | TurnTemporary
	if s.State() != TurnYellow {
		t.Fatalf("State() = %d, want %d", s.State(), TurnYellow)
	}
	if !s.IsTemporary() {
		t.Fatal("IsTemporary() should be true")
	}
}

func TestParseScheduleType(t *testing.T) {
	for _, ty := range []ScheduleType{ScheduleStopped, ScheduleWeekly, ScheduleDaily, ScheduleQuick, ScheduleManual} {
		got, err := ParseScheduleType(ty.String())
		if err != nil || got != ty {
			t.Fatalf("ParseScheduleType(%q) = %v, %v", ty.String(), got, err)
		}
	}
	if _, err := ParseScheduleType("hourly"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseGameState(t *testing.T) {
	if st, err := ParseGameState("running"); err != nil || st != StateRunning {
		t.Fatalf("ParseGameState(running) = %v, %v", st, err)
	}
	if _, err := ParseGameState("sleeping"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestParseCondition(t *testing.T) {
	if c, err := ParseCondition("turn"); err != nil || c != ConditionTurn {
		t.Fatalf("ParseCondition(turn) = %v, %v", c, err)
	}
	if _, err := ParseCondition("never"); err == nil {
		t.Fatal("expected error for unknown condition")
	}
}

func TestParseTurnStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    TurnStatus
		wantErr bool
	}{
		{"green", TurnGreen, false},
		{"yellow+temporary", TurnYellow | TurnTemporary, false},
		{"missing", TurnMissing, false},
		{"2", TurnYellow, false},
		{"17", TurnGreen | TurnTemporary, false},
		{"9", 0, true},
		{"33", 0, true},
		{"-1", 0, true},
		{"blue", 0, true},
		{"green+final", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTurnStatus(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseTurnStatus(%q) = %d, %v; want %d, err %v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
	if s := (TurnRed | TurnTemporary).String(); s != "red+temporary" {
		t.Fatalf("String = %q", s)
	}
}

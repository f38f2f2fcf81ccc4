package scheduling

import (
	"testing"

	"github.com/google/uuid"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return c
}

func block(t *testing.T, day int, start, end string) WeeklyBlock {
	return WeeklyBlock{ID: uuid.New(), DayOfWeek: day, Start: mustClock(t, start), End: mustClock(t, end), Active: true}
}

func closedOn(t *testing.T, date string) ExceptionRow {
	return ExceptionRow{ID: uuid.New(), Date: mustDate(t, date), Closed: true}
}

func specialOn(t *testing.T, date, start, end string) ExceptionRow {
	s, e := mustClock(t, start), mustClock(t, end)
	return ExceptionRow{ID: uuid.New(), Date: mustDate(t, date), Start: &s, End: &e}
}

func iv(t *testing.T, start, end string) Interval {
	return Interval{Start: mustClock(t, start), End: mustClock(t, end)}
}

func TestInterval_Overlaps(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{iv(t, "09:00", "10:00"), iv(t, "09:30", "10:30"), true},
		{iv(t, "09:00", "10:00"), iv(t, "10:00", "11:00"), false},
		{iv(t, "10:00", "11:00"), iv(t, "09:00", "10:00"), false},
		{iv(t, "09:00", "12:00"), iv(t, "10:00", "11:00"), true},
		{iv(t, "09:00", "10:00"), iv(t, "11:00", "12:00"), false},
	}
	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%v overlaps %v: got %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Errorf("overlap is not symmetric for %v and %v", tc.a, tc.b)
		}
	}
}

func TestInterval_Contains(t *testing.T) {
	outer := iv(t, "09:00", "12:00")
	if !outer.Contains(iv(t, "09:00", "12:00")) {
		t.Error("an interval should contain itself")
	}
	if !outer.Contains(iv(t, "10:00", "11:00")) {
		t.Error("expected inner interval to be contained")
	}
	if outer.Contains(iv(t, "08:00", "09:30")) {
		t.Error("interval starting before the block must not be contained")
	}
	if outer.Contains(iv(t, "11:30", "12:30")) {
		t.Error("interval ending after the block must not be contained")
	}
}

func TestResolveDay_Template(t *testing.T) {
	monday := mustDate(t, "2024-06-10")
	template := []WeeklyBlock{
		block(t, 1, "15:00", "19:00"),
		block(t, 1, "09:00", "12:00"),
		block(t, 2, "09:00", "17:00"),
	}
	inactive := block(t, 1, "20:00", "21:00")
	inactive.Active = false
	template = append(template, inactive)

	day := ResolveDay(monday, template, nil)
	if day.Mode != ModeTemplate {
		t.Fatalf("expected template mode, got %s", day.Mode)
	}
	if day.DayOfWeek != 1 {
		t.Errorf("expected Monday (1), got %d", day.DayOfWeek)
	}
	want := []Interval{iv(t, "09:00", "12:00"), iv(t, "15:00", "19:00")}
	if len(day.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %v", len(want), day.Blocks)
	}
	for i := range want {
		if day.Blocks[i] != want[i] {
			t.Errorf("block %d: got %v, want %v", i, day.Blocks[i], want[i])
		}
	}
}

func TestResolveDay_SundayIsSeven(t *testing.T) {
	sunday := mustDate(t, "2024-06-16")
	day := ResolveDay(sunday, []WeeklyBlock{block(t, 7, "10:00", "13:00"), block(t, 0, "10:00", "13:00")}, nil)
	if day.DayOfWeek != 7 {
		t.Fatalf("expected Sunday as 7, got %d", day.DayOfWeek)
	}
	if len(day.Blocks) != 1 {
		t.Errorf("expected only the day-7 block, got %v", day.Blocks)
	}
}

func TestResolveDay_ClosedWins(t *testing.T) {
	monday := mustDate(t, "2024-06-10")
	template := []WeeklyBlock{block(t, 1, "09:00", "12:00")}
	day := ResolveDay(monday, template, []ExceptionRow{closedOn(t, "2024-06-10")})

	if day.Mode != ModeClosed {
		t.Fatalf("expected closed, got %s", day.Mode)
	}
	if len(day.Blocks) != 0 {
		t.Errorf("closed day must have no blocks, got %v", day.Blocks)
	}
	if day.Admits(iv(t, "10:00", "11:00")) {
		t.Error("closed day must admit nothing")
	}
}

func TestResolveDay_SpecialReplacesTemplate(t *testing.T) {
	monday := mustDate(t, "2024-06-10")
	template := []WeeklyBlock{block(t, 1, "09:00", "12:00")}
	day := ResolveDay(monday, template, []ExceptionRow{
		specialOn(t, "2024-06-10", "16:00", "18:00"),
		specialOn(t, "2024-06-10", "13:00", "14:00"),
	})

	if day.Mode != ModeSpecial {
		t.Fatalf("expected special, got %s", day.Mode)
	}
	if len(day.Blocks) != 2 || day.Blocks[0] != iv(t, "13:00", "14:00") {
		t.Fatalf("expected sorted special blocks, got %v", day.Blocks)
	}
	if day.Admits(iv(t, "10:00", "11:00")) {
		t.Error("template hours must not apply on a special day")
	}
	if !day.Admits(iv(t, "16:30", "17:30")) {
		t.Error("expected special block to admit slot")
	}
}

func TestResolveDay_NoTemplate(t *testing.T) {
	day := ResolveDay(mustDate(t, "2024-06-11"), nil, nil)
	if day.Mode != ModeTemplate || len(day.Blocks) != 0 {
		t.Errorf("expected empty template day, got %+v", day)
	}
	if day.Blocks == nil {
		t.Error("blocks should encode as an empty list")
	}
}

func TestResolvedDay_AdjacentBlocksNotMerged(t *testing.T) {
	day := ResolvedDay{Blocks: []Interval{iv(t, "09:00", "10:00"), iv(t, "10:00", "11:00")}}
	if day.Admits(iv(t, "09:30", "10:30")) {
		t.Error("a slot spanning two touching blocks must be refused")
	}
	if !day.Admits(iv(t, "10:00", "11:00")) {
		t.Error("a slot equal to a block must be admitted")
	}
}

func TestResolvedDay_RunsToMidnight(t *testing.T) {
	day := ResolvedDay{Blocks: []Interval{iv(t, "20:00", "24:00")}}
	if !day.Admits(iv(t, "23:00", "24:00")) {
		t.Error("expected slot ending at 24:00 to be admitted")
	}
}

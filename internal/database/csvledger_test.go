package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenCSVLedger_WritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	if _, err := OpenCSVLedger(path, time.UTC); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ID,Name,Timestamp,Offset\n" {
		t.Errorf("unexpected file content %q", data)
	}

	// reopening must not duplicate the header
	if _, err := OpenCSVLedger(path, time.UTC); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if strings.Count(string(data), "ID,Name") != 1 {
		t.Errorf("header written twice: %q", data)
	}
}

func TestCSVLedger_AppendAndReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	l, err := OpenCSVLedger(path, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	want := []AttendanceRecord{
		{IdentityID: "1", IdentityName: "Ada Lovelace", Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{IdentityID: "2", IdentityName: "Smith, John", Timestamp: time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)},
	}
	for _, rec := range want {
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	reopened, err := OpenCSVLedger(path, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	var got []AttendanceRecord
	if err := reopened.Replay(ctx, func(rec AttendanceRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].IdentityID != want[i].IdentityID || got[i].IdentityName != want[i].IdentityName ||
			!got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCSVLedger_ReplaySkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := strings.Join([]string{
		"ID,Name,Timestamp",
		"1,Ada,2024-03-01 09:00:00",
		"short,row",
		"",
		"2,Grace,yesterday",
		"3,Alan,2024-03-01 16:30:00,extra",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := OpenCSVLedger(path, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	if err := l.Replay(context.Background(), func(rec AttendanceRecord) error {
		ids = append(ids, rec.IdentityID)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(ids, ",") != "1,3" {
		t.Errorf("expected rows 1 and 3, got %v", ids)
	}
}

func TestCSVLedger_Recent(t *testing.T) {
	ctx := context.Background()
	l, err := OpenCSVLedger(filepath.Join(t.TempDir(), "attendance.csv"), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	for i := range 5 {
		rec := AttendanceRecord{IdentityID: string(rune('a' + i)), IdentityName: "n", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		limit int
		want  string
	}{
		{limit: 3, want: "edc"},
		{limit: 5, want: "edcba"},
		{limit: 10, want: "edcba"},
		{limit: 0, want: ""},
	}
	for _, tt := range tests {
		recs, err := l.Recent(ctx, tt.limit)
		if err != nil {
			t.Fatal(err)
		}
		var got string
		for _, r := range recs {
			got += r.IdentityID
		}
		if got != tt.want {
			t.Errorf("Recent(%d) = %q, want %q", tt.limit, got, tt.want)
		}
	}
}

func TestCSVLedger_OffsetDisambiguatesFallBack(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	l, err := OpenCSVLedger(path, loc)
	if err != nil {
		t.Fatal(err)
	}

	// 02:30 local happens twice on 2024-10-27: at 00:30 and 01:30 UTC
	first := time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC)
	second := time.Date(2024, 10, 27, 1, 30, 0, 0, time.UTC)
	for _, ts := range []time.Time{first, second} {
		if err := l.Append(ctx, AttendanceRecord{IdentityID: "1", IdentityName: "Ada", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	data, _ := os.ReadFile(path)
	for _, want := range []string{"2024-10-27 02:30:00,+02:00", "2024-10-27 02:30:00,+01:00"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("ledger missing row %q:\n%s", want, data)
		}
	}

	var got []time.Time
	if err := l.Replay(ctx, func(rec AttendanceRecord) error {
		got = append(got, rec.Timestamp)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Equal(first) || !got[1].Equal(second) {
		t.Errorf("replayed %v, want %v and %v", got, first, second)
	}
}

func TestCSVLedger_ReadsRowsWithoutOffset(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	path := filepath.Join(t.TempDir(), "attendance.csv")
	content := "ID,Name,Timestamp\n1,Ada,2024-03-01 09:00:00\n2,Grace,2024-03-01 09:00:00,+00:00\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := OpenCSVLedger(path, loc)
	if err != nil {
		t.Fatal(err)
	}
	var got []time.Time
	if err := l.Replay(context.Background(), func(rec AttendanceRecord) error {
		got = append(got, rec.Timestamp)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("record %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

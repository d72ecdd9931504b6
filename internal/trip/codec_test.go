package trip

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecode(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 1, 2, 0, time.UTC)
	in := []Trip{
		{ID: "t1", User: "ana", Line: "553", Date: "2024-03-01", Time: "08:00", Note: "cheio, como sempre", CreatedAt: created},
		{ID: "t2", User: "bia", Line: "100", Date: "2024-03-01", Time: "14:00:59", Origin: "Centro", Destination: "Tijuca"},
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,user,line,date,time,origin,destination,note,created_at\n") {
		t.Fatalf("unexpected header: %q", data)
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(out))
	}
	if out[0].Note != "cheio, como sempre" || !out[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected first trip %+v", out[0])
	}
	if out[1].Time != "14:00" {
		t.Fatalf("expected seconds truncated, got %q", out[1].Time)
	}
	if out[1].Origin != "Centro" || out[1].Destination != "Tijuca" || !out[1].CreatedAt.IsZero() {
		t.Fatalf("unexpected second trip %+v", out[1])
	}
}

func TestDecodeLegacyColumns(t *testing.T) {
	data := []byte("user,line,date,time,note,created_at\n" +
		"ana,553,2024-03-01,08:00:00,,2024-03-01 08:01:02.123456\n" +
		"ana,553,2024-03-01,08:00:00,,2024-03-01 08:01:02.123456\n")

	first, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, _ := Decode(data)
	if len(first) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(first))
	}
	if first[0].ID == "" || first[0].ID == first[1].ID {
		t.Fatalf("expected distinct derived ids, got %q and %q", first[0].ID, first[1].ID)
	}
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Fatalf("derived ids must be stable across decodes")
	}
	if first[0].CreatedAt.IsZero() {
		t.Fatalf("expected legacy created_at to parse")
	}
}

func TestDecodeEmptyAndBadHeader(t *testing.T) {
	trips, err := Decode([]byte("  \n"))
	if err != nil || trips != nil {
		t.Fatalf("expected empty snapshot, got %v %v", trips, err)
	}
	if _, err := Decode([]byte("foo,bar\n1,2\n")); err == nil {
		t.Fatalf("expected error for header without user/line")
	}
}

func TestDecodePortugueseHeader(t *testing.T) {
	data := []byte("\ufeffusuario,linha,data,hora,origem,destino,obs,timestamp\n" +
		"ana,553,2024-03-01,08:00:00,Centro,Tijuca,\"cheio, como sempre\",2024-03-01 08:01:02.123456\n" +
		"bia,100,2024-03-02,14:00,,,,\n")

	trips, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(trips))
	}
	got := trips[0]
	if got.User != "ana" || got.Line != "553" || got.Date != "2024-03-01" || got.Time != "08:00:00" {
		t.Fatalf("unexpected first trip %+v", got)
	}
	if got.Origin != "Centro" || got.Destination != "Tijuca" || got.Note != "cheio, como sempre" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected first trip %+v", got)
	}
	if trips[1].User != "bia" || trips[1].ID == "" || trips[1].ID == got.ID {
		t.Fatalf("unexpected second trip %+v", trips[1])
	}
}

func TestDecodeSkipsMalformedRows(t *testing.T) {
	data := []byte("usuario,linha,data,hora,obs\n" +
		"ana,553,2024-03-01,08:00,ok\n" +
		"ana,553,2024-03-01,09:00,cheio \"lotado\" hoje\n" +
		"bia,100,2024-03-02,14:00,\n")

	trips, err := Decode(data)
	if !errors.Is(err, ErrMalformedRows) {
		t.Fatalf("expected malformed rows error, got %v", err)
	}
	if !strings.Contains(err.Error(), "[3]") {
		t.Fatalf("expected the bad line to be named, got %v", err)
	}
	if len(trips) != 2 || trips[0].Time != "08:00" || trips[1].User != "bia" {
		t.Fatalf("expected the readable rows back, got %+v", trips)
	}
}

func TestOccurredAt(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	at, ok := Trip{Date: "2024-03-01", Time: "08:45:30"}.OccurredAt(loc)
	if !ok {
		t.Fatalf("expected valid instant")
	}
	want := time.Date(2024, 3, 1, 8, 45, 0, 0, loc)
	if !at.Equal(want) {
		t.Fatalf("expected %v, got %v", want, at)
	}
	for _, bad := range []Trip{
		{Date: "2024-13-01", Time: "08:00"},
		{Date: "01/03/2024", Time: "08:00"},
		{Date: "2024-03-01", Time: "8h"},
		{Date: "2024-03-01", Time: "08:00x"},
		{Date: "", Time: ""},
	} {
		if _, ok := bad.OccurredAt(loc); ok {
			t.Fatalf("expected %+v to be malformed", bad)
		}
	}
}

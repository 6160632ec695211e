package object

import (
	"errors"
	"testing"
	"time"
)

func TestRawResponseKey(t *testing.T) {
	at := time.Date(2026, time.March, 4, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	got := RawResponseKey("0b4c", at)
	if got != "raw-responses/2026/03/05/0b4c.txt" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestCleanKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "raw-responses/a.txt", want: "raw-responses/a.txt"},
		{in: "/raw-responses//a.txt", want: "raw-responses/a.txt"},
		{in: "../secret", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: " ", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tc := range cases {
		got, err := CleanKey(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("%q: expected ErrInvalidKey, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

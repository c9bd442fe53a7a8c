package sync

import (
	"reflect"
	"testing"
)

func TestParseFileList(t *testing.T) {
	tests := []struct {
		list string
		want []uint
	}{
		{"", nil},
		{"12,34", []uint{12, 34}},
		{"n12,34,n56", []uint{12, 34, 56}},
		{" n7 , 8 ", []uint{7, 8}},
		{"garbage,9", []uint{9}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := ParseFileList(tt.list); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseFileList(%q) = %v, want %v", tt.list, got, tt.want)
		}
	}
}

func TestAppendPending(t *testing.T) {
	got := AppendPending("", []uint{5})
	if got != "n5" {
		t.Errorf("AppendPending empty = %q, want n5", got)
	}

	got = AppendPending("n5,6", []uint{7, 8})
	if got != "n5,6,n7,n8" {
		t.Errorf("AppendPending = %q, want n5,6,n7,n8", got)
	}

	// Round trip through the reader.
	ids := ParseFileList(got)
	if !reflect.DeepEqual(ids, []uint{5, 6, 7, 8}) {
		t.Errorf("round trip = %v", ids)
	}
}

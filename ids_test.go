package pagedb

import "testing"

func TestPutGetID(t *testing.T) {
	tests := []struct {
		name string
		id   PageID
	}{
		{name: "zero", id: 0},
		{name: "small", id: 42},
		{name: "max-48-bit", id: (1 << 48) - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, idSize)
			putID(buf, tt.id)
			if got := getID(buf); got != tt.id {
				t.Errorf("getID(putID(%d)) = %d, want %d", tt.id, got, tt.id)
			}
		})
	}
}

func TestNoPageIsZero(t *testing.T) {
	if NoPage != 0 {
		t.Errorf("NoPage = %d, want 0", NoPage)
	}
}

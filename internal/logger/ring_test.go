package logger

import (
	"reflect"
	"testing"
)

func TestRingLast(t *testing.T) {
	tests := []struct {
		name   string
		cap    int
		writes []string
		n      int
		want   []string
	}{
		{"empty", 3, nil, 5, []string{}},
		{"partial", 5, []string{"a\n", "b\n"}, 5, []string{"a", "b"}},
		{"limit", 5, []string{"a\nb\nc\n"}, 2, []string{"b", "c"}},
		{"wraps", 3, []string{"a\n", "b\n", "c\n", "d\n", "e\n"}, 3, []string{"c", "d", "e"}},
		{"skips blank lines", 3, []string{"a\n\n\nb\r\n"}, 3, []string{"a", "b"}},
		{"zero", 3, []string{"a\n"}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(tt.cap)
			for _, w := range tt.writes {
				if _, err := r.Write([]byte(w)); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			got := r.Last(tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Last(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

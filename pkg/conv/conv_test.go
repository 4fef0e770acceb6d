package conv

import "testing"

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{4.5, 4.5, true},
		{float32(2), 2, true},
		{int64(3), 3, true},
		{"3.25", 3.25, true},
		{[]byte("1"), 1, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ToFloat64(%v) = (%v, %v), 期望 (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]struct{}{"b": {}, "a": {}, "c": {}})
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedKeys = %v, 期望 %v", got, want)
		}
	}
}

func TestConvertSlice(t *testing.T) {
	got := ConvertSlice([]any{"a", 1, "b"}, ToString)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("ConvertSlice = %v", got)
	}
}

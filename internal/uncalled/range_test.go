package uncalled

import "testing"

func Test_Range(t *testing.T) {
	tests := []struct {
		name   string
		r      Range
		valid  bool
		length uint64
	}{
		{
			"single slot",
			NewRange(3, 3),
			true,
			1,
		},
		{
			"wide",
			NewRange(10, 19),
			true,
			10,
		},
		{
			"inverted is invalid",
			NewRange(5, 4),
			false,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Valid(); got != tt.valid {
				t.Errorf("Range.Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.r.Length(); got != tt.length {
				t.Errorf("Range.Length() = %v, want %v", got, tt.length)
			}
		})
	}
}

func Test_RangeLess(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"start decides", NewRange(1, 5), NewRange(2, 3), true},
		{"end breaks ties", NewRange(2, 3), NewRange(2, 5), true},
		{"equal is not less", NewRange(2, 5), NewRange(2, 5), false},
		{"greater start", NewRange(3, 3), NewRange(2, 9), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("Less(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func Test_RangeIntersect(t *testing.T) {
	a := NewRange(5, 10)

	if got := a.Intersect(NewRange(8, 20)); !got.Equals(NewRange(8, 10)) {
		t.Errorf("Intersect overlap = %v, want [8,10]", got)
	}
	if got := a.Intersect(NewRange(11, 20)); got.Valid() {
		t.Errorf("Intersect of disjoint ranges should be invalid, got %v", got)
	}
}

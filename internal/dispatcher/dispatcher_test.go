package dispatcher

import (
	"errors"
	"slices"
	"testing"
)

func TestCandidatesWrapOnce(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		start int
		want  []int
	}{
		{"from zero", 4, 0, []int{0, 1, 2, 3}},
		{"from middle", 4, 2, []int{2, 3, 0, 1}},
		{"from last", 3, 2, []int{2, 0, 1}},
		{"start beyond n", 3, 7, []int{1, 2, 0}},
		{"single", 1, 0, []int{0}},
		{"empty", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := NewRoundRobin(tt.n, tt.start)
			got := slices.Collect(rr.Candidates())
			if !slices.Equal(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidatesStopEarly(t *testing.T) {
	rr := NewRoundRobin(5, 3)
	var seen []int
	for idx := range rr.Candidates() {
		seen = append(seen, idx)
		if idx == 4 {
			break
		}
	}
	if !slices.Equal(seen, []int{3, 4}) {
		t.Errorf("seen = %v, want [3 4]", seen)
	}
}

func TestCursorMoves(t *testing.T) {
	rr := NewRoundRobin(3, 0)

	rr.Succeeded(1)
	if got := rr.Cursor(); got != 2 {
		t.Errorf("after Succeeded(1) cursor = %d, want 2", got)
	}

	rr.Succeeded(2)
	if got := rr.Cursor(); got != 0 {
		t.Errorf("after Succeeded(2) cursor = %d, want 0", got)
	}

	rr.Exhausted()
	rr.Exhausted()
	if got := rr.Cursor(); got != 2 {
		t.Errorf("after two Exhausted() cursor = %d, want 2", got)
	}
	rr.Exhausted()
	if got := rr.Cursor(); got != 0 {
		t.Errorf("Exhausted() must wrap, cursor = %d, want 0", got)
	}
}

// With every credential answering, consecutive lookups use successive credentials.
func TestRoundRobinRotation(t *testing.T) {
	rr := NewRoundRobin(4, 0)
	var used []int
	for i := 0; i < 8; i++ {
		for idx := range rr.Candidates() {
			used = append(used, idx)
			rr.Succeeded(idx)
			break
		}
	}
	want := []int{0, 1, 2, 3, 0, 1, 2, 3}
	if !slices.Equal(used, want) {
		t.Errorf("used = %v, want %v", used, want)
	}
}

func TestNewPool(t *testing.T) {
	p, err := NewPool([]string{"tok-a", " ", "tok-b", ""}, PoolOpts{Capacity: 5, Start: 1})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	if p.At(1).Token != "tok-b" || p.At(1).Name != "cred-1" {
		t.Errorf("At(1) = %+v", p.At(1))
	}
	if p.Cursor() != 1 {
		t.Errorf("Cursor() = %d, want 1", p.Cursor())
	}
	if st := p.Stats(); len(st) != 2 || st[0].Remaining != 5 {
		t.Errorf("Stats() = %+v", st)
	}

	if _, err := NewPool(nil, PoolOpts{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("NewPool(nil) error = %v, want ErrNoCredentials", err)
	}
}

package search

import (
	"errors"
	"testing"
)

func TestHistoryRejectsDuplicatesAndRange(t *testing.T) {
	h := NewHistory()
	if err := h.Add(Trial{Quality: 50, SizeKB: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.Add(Trial{Quality: 50, SizeKB: 12}); !errors.Is(err, ErrDuplicateQuality) {
		t.Fatalf("expected ErrDuplicateQuality, got %v", err)
	}
	for _, q := range []int{0, 101} {
		if err := h.Add(Trial{Quality: q}); err == nil {
			t.Fatalf("quality %d should be rejected", q)
		}
	}
	if h.Len() != 1 || !h.Tried(50) || h.Tried(51) {
		t.Fatalf("unexpected history state: len=%d", h.Len())
	}
}

func TestHistoryBracketIsTightest(t *testing.T) {
	h := NewHistory()
	// Non-monotonic: quality 60 is under target while 55 is over.
	for _, tr := range []Trial{
		{Quality: 95, SizeKB: 400},
		{Quality: 1, SizeKB: 20},
		{Quality: 40, SizeKB: 150},
		{Quality: 70, SizeKB: 260},
		{Quality: 55, SizeKB: 210},
		{Quality: 60, SizeKB: 195},
	} {
		if err := h.Add(tr); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	b := h.Bracket(200)
	if !b.Complete() {
		t.Fatal("bracket should have both sides")
	}
	if b.Lower.Quality != 60 {
		t.Fatalf("lower = %d, want max quality under target (60)", b.Lower.Quality)
	}
	if b.Higher.Quality != 55 {
		t.Fatalf("higher = %d, want min quality over target (55)", b.Higher.Quality)
	}

	if one := h.Bracket(10); one.Lower != nil || one.Higher == nil || one.Higher.Quality != 1 {
		t.Fatalf("target below every size should give only an upper side: %+v", one)
	}
}

func TestSelectBest(t *testing.T) {
	trials := []Trial{
		{Quality: 90, SizeKB: 310},
		{Quality: 30, SizeKB: 120},
		{Quality: 60, SizeKB: 199},
		{Quality: 65, SizeKB: 198},
		{Quality: 70, SizeKB: 205},
	}

	best, fits := SelectBest(trials, 200)
	if !fits || best.Quality != 60 {
		t.Fatalf("expected largest size under target (q60), got q%d fits=%v", best.Quality, fits)
	}

	best, fits = SelectBest(trials, 100)
	if fits || best.Quality != 30 {
		t.Fatalf("expected smallest trial as best effort (q30), got q%d fits=%v", best.Quality, fits)
	}

	if _, fits := SelectBest(nil, 100); fits {
		t.Fatal("empty history cannot fit")
	}
}

func TestHistoryPruneKeepsWinnerPayload(t *testing.T) {
	h := NewHistory()
	add := func(q int, size float64) {
		t.Helper()
		if err := h.Add(Trial{Quality: q, SizeKB: size, Payload: []byte{byte(q)}}); err != nil {
			t.Fatalf("add: %v", err)
		}
		h.Prune(100)
	}

	add(95, 300)
	add(1, 10)
	add(50, 80)
	add(70, 120)

	for _, tr := range h.Trials() {
		if tr.Quality == 50 {
			if len(tr.Payload) != 1 {
				t.Fatal("winner lost its payload")
			}
			continue
		}
		if tr.Payload != nil {
			t.Fatalf("quality %d kept its payload", tr.Quality)
		}
	}

	best, fits := SelectBest(h.Trials(), 100)
	if !fits || best.Quality != 50 || best.Payload == nil {
		t.Fatalf("unexpected selection after pruning: %+v", best)
	}
}

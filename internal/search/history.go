package search

import (
	"errors"
	"fmt"
)

// ErrDuplicateQuality is returned when a quality is added to a History twice.
var ErrDuplicateQuality = errors.New("quality already tried")

const (
	MinQuality = 1
	MaxQuality = 100
)

// Trial is one encode measurement.
type Trial struct {
	Quality int
	Method  int // -1 when no method knob was used
	SizeKB  float64
	Payload []byte
}

// History records the trials of one image, keyed by quality, in the order
// they were made.
type History struct {
	byQuality map[int]int
	trials    []Trial
}

func NewHistory() *History {
	return &History{byQuality: make(map[int]int)}
}

// Add appends t. Qualities outside [MinQuality, MaxQuality] and repeated
// qualities are rejected.
func (h *History) Add(t Trial) error {
	if t.Quality < MinQuality || t.Quality > MaxQuality {
		return fmt.Errorf("quality %d out of range", t.Quality)
	}
	if _, ok := h.byQuality[t.Quality]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateQuality, t.Quality)
	}
	h.byQuality[t.Quality] = len(h.trials)
	h.trials = append(h.trials, t)
	return nil
}

func (h *History) Tried(quality int) bool {
	_, ok := h.byQuality[quality]
	return ok
}

func (h *History) Len() int {
	return len(h.trials)
}

// Trials returns the trials in insertion order. The slice is shared.
func (h *History) Trials() []Trial {
	return h.trials
}

// Bracket is the tightest pair of trials straddling the target: Lower is the
// highest quality at or under target, Higher the lowest quality over it.
type Bracket struct {
	Lower  *Trial
	Higher *Trial
}

// Complete reports whether both sides exist.
func (b Bracket) Complete() bool {
	return b.Lower != nil && b.Higher != nil
}

// Gap is the quality distance between the sides. Only meaningful when
// Complete.
func (b Bracket) Gap() int {
	return b.Higher.Quality - b.Lower.Quality
}

// Bracket derives the bracket from the whole history.
func (h *History) Bracket(targetKB float64) Bracket {
	var b Bracket
	for i := range h.trials {
		t := &h.trials[i]
		if t.SizeKB <= targetKB {
			if b.Lower == nil || t.Quality > b.Lower.Quality {
				b.Lower = t
			}
		} else if b.Higher == nil || t.Quality < b.Higher.Quality {
			b.Higher = t
		}
	}
	return b
}

// Prune drops the payload of every trial except the current winner of
// SelectBest. Later trials can only displace the winner, never revive a
// pruned trial, so the final selection always has its payload.
func (h *History) Prune(targetKB float64) {
	idx := selectBestIndex(h.trials, targetKB)
	for i := range h.trials {
		if i != idx {
			h.trials[i].Payload = nil
		}
	}
}

// SelectBest picks the final answer: the largest size at or under target,
// or the smallest size overall when nothing fits. The second result is false
// in the latter, best-effort case. trials must not be empty.
func SelectBest(trials []Trial, targetKB float64) (Trial, bool) {
	idx := selectBestIndex(trials, targetKB)
	if idx < 0 {
		return Trial{}, false
	}
	return trials[idx], trials[idx].SizeKB <= targetKB
}

func selectBestIndex(trials []Trial, targetKB float64) int {
	under, smallest := -1, -1
	for i, t := range trials {
		if t.SizeKB <= targetKB && (under < 0 || t.SizeKB > trials[under].SizeKB) {
			under = i
		}
		if smallest < 0 || t.SizeKB < trials[smallest].SizeKB {
			smallest = i
		}
	}
	if under >= 0 {
		return under
	}
	return smallest
}

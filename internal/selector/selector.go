package selector

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	inventorydomain "github.com/smallbiznis/spinwheel/internal/inventory/domain"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"go.uber.org/fx"
)

var Module = fx.Module("selector",
	fx.Provide(New),
)

// Outcome is one drawn slice. PrizeID is zero for messages.
type Outcome struct {
	SliceIndex int
	Label      string
	IsPrize    bool
	PrizeID    int64
}

// Selector draws weighted outcomes. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New seeds a PCG source once from the operating system.
func New() *Selector {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("selector: read seed: " + err.Error())
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return NewWithSource(src)
}

func NewWithSource(src rand.Source) *Selector {
	return &Selector{rng: rand.New(src)}
}

func (s *Selector) int64n(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64N(n)
}

// Weights returns the draw weight of every slice in wheel order.
func Weights(w *wheel.Wheel, snap inventorydomain.Snapshot) []int64 {
	weights := make([]int64, len(w.Slices))
	for i, slice := range w.Slices {
		entry, ok := snap[slice.Label]
		if !ok {
			weights[i] = int64(w.DefaultWeight(slice.Label))
			continue
		}
		weights[i] = int64(entry.EffectiveWeight())
	}
	return weights
}

// Select draws a slice proportionally to its weight. When nothing carries
// weight the draw is uniform over the message slices.
func (s *Selector) Select(w *wheel.Wheel, snap inventorydomain.Snapshot) Outcome {
	weights := Weights(w, snap)

	var total int64
	for _, wt := range weights {
		total += wt
	}

	if total <= 0 {
		messages := w.MessageLabels()
		label := messages[s.int64n(int64(len(messages)))]
		return s.outcome(w, snap, w.Index(label))
	}

	r := s.int64n(total)
	var cum int64
	for i, wt := range weights {
		cum += wt
		if cum > r {
			return s.outcome(w, snap, i)
		}
	}
	// Unreachable while total > 0.
	return s.outcome(w, snap, len(weights)-1)
}

func (s *Selector) outcome(w *wheel.Wheel, snap inventorydomain.Snapshot, index int) Outcome {
	label := w.Slices[index].Label
	out := Outcome{SliceIndex: index, Label: label}
	if entry, ok := snap[label]; ok && entry.IsTangible() {
		out.IsPrize = true
		out.PrizeID = entry.PrizeID
	}
	return out
}

package domain

// Entry is the point-in-time view of one prize row.
type Entry struct {
	PrizeID   int64
	Name      string
	Weight    int
	Total     int
	Remaining int
}

func (e Entry) IsTangible() bool { return e.Total > 0 }

// EffectiveWeight is the draw weight of the entry: messages keep their
// weight, tangible prizes drop to zero once exhausted.
func (e Entry) EffectiveWeight() int {
	if e.Weight <= 0 {
		return 0
	}
	if e.IsTangible() && e.Remaining <= 0 {
		return 0
	}
	return e.Weight
}

// Snapshot maps prize name to its entry. It may be stale by the time an
// outcome is applied; decrements re-check availability.
type Snapshot map[string]Entry

func NewSnapshot(prizes []Prize) Snapshot {
	snap := make(Snapshot, len(prizes))
	for _, p := range prizes {
		snap[p.Name] = Entry{
			PrizeID:   p.ID,
			Name:      p.Name,
			Weight:    p.Weight,
			Total:     p.TotalInventory,
			Remaining: p.RemainingInventory,
		}
	}
	return snap
}

// TotalRemaining sums remaining units across tangible prizes.
func (s Snapshot) TotalRemaining() int {
	total := 0
	for _, e := range s {
		if e.IsTangible() && e.Remaining > 0 {
			total += e.Remaining
		}
	}
	return total
}

func (s Snapshot) AllPrizesGone() bool {
	return s.TotalRemaining() == 0
}

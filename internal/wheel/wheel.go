package wheel

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultMessageWeight = 30
	defaultRateLimit     = 10
	defaultRateWindow    = 60 * time.Second
)

var (
	ErrNoSlices          = errors.New("wheel.slices cannot be empty")
	ErrNoMessageSlices   = errors.New("wheel requires at least one message slice")
	ErrInvalidFallback   = errors.New("wheel.fallback_label must name a message slice")
	ErrInvalidRateLimit  = errors.New("wheel.rate_limit must be positive")
	ErrDuplicateLabel    = errors.New("wheel slice labels must be unique")
	ErrInvalidSliceValue = errors.New("wheel slice weight and inventory must be non-negative")
)

// Slice is one labeled wedge. Inventory 0 marks a message slice.
type Slice struct {
	Label     string `mapstructure:"label" json:"label"`
	Weight    int    `mapstructure:"weight" json:"weight"`
	Inventory int    `mapstructure:"inventory" json:"inventory"`
}

func (s Slice) IsMessage() bool {
	return s.Inventory == 0
}

type RateLimit struct {
	Limit  int           `mapstructure:"limit" json:"limit"`
	Window time.Duration `mapstructure:"window" json:"window"`
}

// Wheel is the fixed, ordered slice sequence of an event together with the
// per-event allocation policy. It is immutable once loaded.
type Wheel struct {
	Slices               []Slice   `mapstructure:"slices" json:"slices"`
	FallbackLabel        string    `mapstructure:"fallback_label" json:"fallback_label"`
	DefaultMessageWeight int       `mapstructure:"default_message_weight" json:"default_message_weight"`
	RateLimit            RateLimit `mapstructure:"rate_limit" json:"rate_limit"`

	index map[string]int
}

// Default mirrors the launch event: three tangible prizes with 30 units each
// and three messages.
func Default() *Wheel {
	w := &Wheel{
		Slices: []Slice{
			{Label: "T-shirt", Weight: 3, Inventory: 30},
			{Label: "USB Flash", Weight: 3, Inventory: 30},
			{Label: "Cap", Weight: 3, Inventory: 30},
			{Label: "Arif Try!", Weight: 30},
			{Label: "Arif Luck Next Time!", Weight: 30},
			{Label: "Stay Arif!", Weight: 31},
		},
		FallbackLabel:        "Arif Try!",
		DefaultMessageWeight: defaultMessageWeight,
		RateLimit: RateLimit{
			Limit:  defaultRateLimit,
			Window: defaultRateWindow,
		},
	}
	// Default is valid by construction.
	_ = w.init()
	return w
}

// New validates def and returns a ready wheel. Zero policy values take the
// launch defaults.
func New(def Wheel) (*Wheel, error) {
	w := def
	w.Slices = append([]Slice(nil), def.Slices...)
	if w.RateLimit.Limit == 0 && w.RateLimit.Window == 0 {
		w.RateLimit = RateLimit{Limit: defaultRateLimit, Window: defaultRateWindow}
	}
	if err := w.init(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (w *Wheel) init() error {
	for i := range w.Slices {
		w.Slices[i].Label = strings.TrimSpace(w.Slices[i].Label)
	}
	w.FallbackLabel = strings.TrimSpace(w.FallbackLabel)
	if w.DefaultMessageWeight < 0 {
		w.DefaultMessageWeight = 0
	}

	if len(w.Slices) == 0 {
		return ErrNoSlices
	}

	index := make(map[string]int, len(w.Slices))
	messages := 0
	for i, s := range w.Slices {
		if s.Label == "" {
			return fmt.Errorf("wheel slice %d has an empty label", i)
		}
		if _, ok := index[s.Label]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, s.Label)
		}
		if s.Weight < 0 || s.Inventory < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidSliceValue, s.Label)
		}
		if s.IsMessage() {
			messages++
		}
		index[s.Label] = i
	}
	if messages == 0 {
		return ErrNoMessageSlices
	}

	if w.FallbackLabel == "" {
		for _, s := range w.Slices {
			if s.IsMessage() {
				w.FallbackLabel = s.Label
				break
			}
		}
	}
	fallback, ok := index[w.FallbackLabel]
	if !ok || !w.Slices[fallback].IsMessage() {
		return ErrInvalidFallback
	}

	if w.RateLimit.Limit <= 0 || w.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}

	w.index = index
	return nil
}

// Labels returns the slice labels in wheel order.
func (w *Wheel) Labels() []string {
	out := make([]string, 0, len(w.Slices))
	for _, s := range w.Slices {
		out = append(out, s.Label)
	}
	return out
}

// Index returns the fixed position of label, or -1.
func (w *Wheel) Index(label string) int {
	if i, ok := w.index[label]; ok {
		return i
	}
	return -1
}

// MessageLabels returns the labels configured without inventory, in wheel order.
func (w *Wheel) MessageLabels() []string {
	out := make([]string, 0, len(w.Slices))
	for _, s := range w.Slices {
		if s.IsMessage() {
			out = append(out, s.Label)
		}
	}
	return out
}

// DefaultWeight is used when a configured label has no stored prize row.
// Only message labels get a non-zero default.
func (w *Wheel) DefaultWeight(label string) int {
	i := w.Index(label)
	if i < 0 || !w.Slices[i].IsMessage() {
		return 0
	}
	return w.DefaultMessageWeight
}

// Fallback returns the index and label an outcome is downgraded to when the
// drawn prize ran out between snapshot and decrement.
func (w *Wheel) Fallback() (int, string) {
	return w.Index(w.FallbackLabel), w.FallbackLabel
}

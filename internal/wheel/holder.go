package wheel

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ErrLayoutChanged = errors.New("wheel slice layout cannot change while running")

// Holder serves the current wheel. The rate limit, default message weight
// and fallback may be swapped at runtime. The slice sequence is fixed because
// clients render slices by index. Stored prize rows keep their own weights.
type Holder struct {
	current atomic.Pointer[Wheel]
}

func NewHolder(w *Wheel) *Holder {
	h := &Holder{}
	h.current.Store(w)
	return h
}

func (h *Holder) Current() *Wheel {
	return h.current.Load()
}

// Update installs next when it keeps the running slice layout.
func (h *Holder) Update(next *Wheel) error {
	if next == nil {
		return ErrNoSlices
	}
	cur := h.Current()
	if len(cur.Slices) != len(next.Slices) {
		return ErrLayoutChanged
	}
	for i := range cur.Slices {
		if cur.Slices[i].Label != next.Slices[i].Label || cur.Slices[i].IsMessage() != next.Slices[i].IsMessage() {
			return fmt.Errorf("%w: slice %d", ErrLayoutChanged, i)
		}
	}
	h.current.Store(next)
	return nil
}

// Watch reloads the holder whenever the file behind v changes. Invalid edits
// are logged and ignored.
func Watch(v *viper.Viper, h *Holder, log *zap.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			log.Warn("wheel reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := h.Update(next); err != nil {
			log.Warn("wheel change ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("wheel reloaded",
			zap.String("file", e.Name),
			zap.Int("rate_limit", next.RateLimit.Limit),
			zap.Duration("rate_window", next.RateLimit.Window),
		)
	})
	v.WatchConfig()
}

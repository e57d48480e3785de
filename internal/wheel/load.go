package wheel

import (
	"errors"
	"strings"

	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const builtinSource = "builtin"

var Module = fx.Module("wheel",
	fx.Provide(Provide),
)

// Provide loads the wheel and, when WHEEL_WATCH is on and a file was found,
// keeps the holder in sync with edits to it.
func Provide(cfg config.Config, log *zap.Logger) (*Wheel, *Holder, error) {
	log = log.Named("wheel")

	v, found, err := open(cfg.WheelConfigPath)
	if err != nil {
		return nil, nil, err
	}

	w := Default()
	source := builtinSource
	if found {
		if w, err = decode(v); err != nil {
			return nil, nil, err
		}
		source = v.ConfigFileUsed()
	}

	holder := NewHolder(w)
	if found && cfg.WheelWatch {
		Watch(v, holder, log)
	}

	log.Info("wheel loaded",
		zap.String("source", source),
		zap.Strings("slices", w.Labels()),
		zap.Int("rate_limit", w.RateLimit.Limit),
		zap.Duration("rate_window", w.RateLimit.Window),
		zap.Bool("watch", found && cfg.WheelWatch),
	)
	return w, holder, nil
}

// Load reads wheel.yml. An explicit path must exist; without one the search
// paths are tried and the built-in wheel is used when nothing is found.
func Load(path string) (*Wheel, string, error) {
	v, found, err := open(path)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return Default(), builtinSource, nil
	}
	w, err := decode(v)
	if err != nil {
		return nil, "", err
	}
	return w, v.ConfigFileUsed(), nil
}

func open(path string) (*viper.Viper, bool, error) {
	v := viper.New()

	path = strings.TrimSpace(path)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wheel")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/spinwheel")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SPINWHEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("wheel.default_message_weight", defaultMessageWeight)
	v.SetDefault("wheel.rate_limit.limit", defaultRateLimit)
	v.SetDefault("wheel.rate_limit.window", defaultRateWindow)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, false, err
		}
		return v, false, nil
	}
	return v, true, nil
}

func decode(v *viper.Viper) (*Wheel, error) {
	var w Wheel
	if err := v.UnmarshalKey("wheel", &w); err != nil {
		return nil, err
	}
	if err := w.init(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Package config loads the process configuration through viper, binding environment variables over an optional file so the
// process can run purely off env vars in a container.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Backoff holds the client-callback dispatcher's retry tuning.
type Backoff struct {
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
}

// Gateway holds the upstream clearing gateway's endpoints and protocol
// constants.
type Gateway struct {
	NECURL      string
	FTDURL      string
	FTCURL      string
	TSQURL      string
	ChannelCode string

	NECFunctionCode       string
	FTCFunctionCode       string
	FTDFunctionCode       string
	TSQFunctionCode       string
	AdvertisedCallbackURL string

	RequestTimeout time.Duration
}

// PollIntervals holds each worker loop's cadence.
type PollIntervals struct {
	CallbackProcessor time.Duration
	FTC               time.Duration
	Reversal          time.Duration
	TSQ               time.Duration
	TSQWarmup         time.Duration
	Timeout           time.Duration
	Dispatcher        time.Duration
}

// Config is the fully resolved configuration.
type Config struct {
	DatabaseURL string
	DBPoolSize  int32

	NECTimeout time.Duration
	FTTimeout  time.Duration

	TSQInterval    time.Duration
	TSQMaxAttempts int

	MaxReversalAttempts int

	BatchSize int

	Gateway       Gateway
	Backoff       Backoff
	PollIntervals PollIntervals
}

// Load reads configuration from environment variables prefixed SWITCHCORE_
// and an optional file at path (ignored if empty or missing), applying
// the documented defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWITCHCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	setDefaults(v)

	cfg := &Config{
		DatabaseURL: v.GetString("database_url"),
		DBPoolSize:  int32(v.GetInt("db_pool_size")),

		NECTimeout: v.GetDuration("nec_timeout"),
		FTTimeout:  v.GetDuration("ft_timeout"),

		TSQInterval:    v.GetDuration("tsq_interval"),
		TSQMaxAttempts: v.GetInt("tsq_max_attempts"),

		MaxReversalAttempts: v.GetInt("max_reversal_attempts"),
		BatchSize:           v.GetInt("batch_size"),

		Gateway: Gateway{
			NECURL:                v.GetString("gateway.nec_url"),
			FTDURL:                v.GetString("gateway.ftd_url"),
			FTCURL:                v.GetString("gateway.ftc_url"),
			TSQURL:                v.GetString("gateway.tsq_url"),
			ChannelCode:           v.GetString("gateway.channel_code"),
			NECFunctionCode:       v.GetString("gateway.nec_function_code"),
			FTCFunctionCode:       v.GetString("gateway.ftc_function_code"),
			FTDFunctionCode:       v.GetString("gateway.ftd_function_code"),
			TSQFunctionCode:       v.GetString("gateway.tsq_function_code"),
			AdvertisedCallbackURL: v.GetString("gateway.advertised_callback_url"),
			RequestTimeout:        v.GetDuration("gateway.request_timeout"),
		},

		Backoff: Backoff{
			BaseDelay:      v.GetDuration("client_callback.base_delay"),
			Multiplier:     v.GetFloat64("client_callback.multiplier"),
			MaxDelay:       v.GetDuration("client_callback.max_delay"),
			MaxAttempts:    v.GetInt("client_callback.max_attempts"),
			RequestTimeout: v.GetDuration("client_callback.request_timeout"),
		},

		PollIntervals: PollIntervals{
			CallbackProcessor: v.GetDuration("poll.callback_processor"),
			FTC:               v.GetDuration("poll.ftc"),
			Reversal:          v.GetDuration("poll.reversal"),
			TSQ:               v.GetDuration("poll.tsq"),
			TSQWarmup:         v.GetDuration("poll.tsq_warmup"),
			Timeout:           v.GetDuration("poll.timeout"),
			Dispatcher:        v.GetDuration("poll.dispatcher"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_pool_size", 20)

	v.SetDefault("nec_timeout", time.Minute)
	v.SetDefault("ft_timeout", 60*time.Minute)

	v.SetDefault("tsq_interval", 5*time.Minute)
	v.SetDefault("tsq_max_attempts", 3)

	v.SetDefault("max_reversal_attempts", 3)
	v.SetDefault("batch_size", 10)

	v.SetDefault("gateway.channel_code", "INTERNET_BANKING")
	v.SetDefault("gateway.nec_function_code", "230")
	v.SetDefault("gateway.ftc_function_code", "240")
	v.SetDefault("gateway.ftd_function_code", "241")
	// Open question: the source uses 230 for TSQ in some
	// paths and 111 in others. Treated here as a plain config constant.
	v.SetDefault("gateway.tsq_function_code", "111")
	v.SetDefault("gateway.request_timeout", 30*time.Second)

	v.SetDefault("client_callback.base_delay", 5*time.Second)
	v.SetDefault("client_callback.multiplier", 2.0)
	v.SetDefault("client_callback.max_delay", 3600*time.Second)
	v.SetDefault("client_callback.max_attempts", 5)
	v.SetDefault("client_callback.request_timeout", 30*time.Second)

	v.SetDefault("poll.callback_processor", 2*time.Second)
	v.SetDefault("poll.ftc", 3*time.Second)
	v.SetDefault("poll.reversal", 5*time.Second)
	v.SetDefault("poll.tsq", 10*time.Second)
	v.SetDefault("poll.tsq_warmup", 60*time.Second)
	v.SetDefault("poll.timeout", 60*time.Second)
	v.SetDefault("poll.dispatcher", 5*time.Second)
}

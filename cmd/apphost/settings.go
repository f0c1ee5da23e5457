package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/PaulAvery/app/configx"
)

// Settings configures the run command. Flags override the environment.
type Settings struct {
	Name            string        `env:"APPHOST_NAME" default:"apphost" validate:"required,excludesall=:*"`
	ShutdownTimeout time.Duration `env:"APPHOST_SHUTDOWN_TIMEOUT" default:"5s" validate:"gt=0"`
	NoSignals       bool          `env:"APPHOST_NO_SIGNALS"`
	Debug           bool          `env:"APPHOST_DEBUG"`
	DiagAddr        string        `env:"APPHOST_DIAG_ADDR" default:":8081" validate:"required"`
	ConnectDelay    time.Duration `env:"APPHOST_CONNECT_DELAY" default:"10ms" validate:"gte=0"`
}

// loadSettings binds the environment, then applies the flags the user set.
func loadSettings(flags *pflag.FlagSet) (Settings, error) {
	var s Settings
	if err := configx.BindEnv(&s); err != nil {
		return s, err
	}

	var err error
	if flags.Changed("name") {
		s.Name, err = flags.GetString("name")
	}
	if err == nil && flags.Changed("shutdown-timeout") {
		s.ShutdownTimeout, err = flags.GetDuration("shutdown-timeout")
	}
	if err == nil && flags.Changed("no-signals") {
		s.NoSignals, err = flags.GetBool("no-signals")
	}
	if err == nil && flags.Changed("debug") {
		s.Debug, err = flags.GetBool("debug")
	}
	if err == nil && flags.Changed("diag-addr") {
		s.DiagAddr, err = flags.GetString("diag-addr")
	}
	if err == nil && flags.Changed("connect-delay") {
		s.ConnectDelay, err = flags.GetDuration("connect-delay")
	}
	if err != nil {
		return s, err
	}

	return s, configx.ValidateStruct(nil, &s)
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("name", "apphost", "Application name, also the config and env prefix")
	flags.Duration("shutdown-timeout", 5*time.Second, "Maximum time app:shutdown handlers may take")
	flags.Bool("no-signals", false, "Do not shut down on SIGINT/SIGTERM")
	flags.Bool("debug", false, "Force trace logging")
	flags.String("diag-addr", ":8081", "Address of the diagnostics server")
	flags.Duration("connect-delay", 10*time.Millisecond, "Simulated connect time of the db component")
}

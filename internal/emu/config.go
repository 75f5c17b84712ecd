package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	LimitFPS bool // throttle to ~60 Hz (useful for headless runs)
}

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	return Config{LimitFPS: true}
}

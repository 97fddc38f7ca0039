package config

import "time"

type Config struct {
	API     API
	Session Session
	Store   Store
}

// API describes the backend and identity-provider endpoints.
type API struct {
	BaseURL         string `yaml:"base_url"`
	SessionPath     string `yaml:"session_path"`
	SignInPath      string `yaml:"signin_path"`
	CallbackPath    string `yaml:"callback_path"`
	DefaultProvider string `yaml:"default_provider"`
}

// Session holds the validity-loop tuning. The refresh interval is coarse
// on purpose; the short check interval catches expiry that would land
// between refresh ticks.
type Session struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CheckInterval   time.Duration `yaml:"check_interval"`
	ExpiryMargin    time.Duration `yaml:"expiry_margin"`
}

// Store selects and configures the durable store backing.
type Store struct {
	Backend string `yaml:"backend"` // sqlite, file or redis
	Path    string `yaml:"path"`
	Redis   Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

func New() (*Config, error) {
	return &Config{
		API: API{
			BaseURL:         "https://cinetaste-254.vercel.app",
			SessionPath:     "/api/auth/session-mobile",
			SignInPath:      "/api/auth/signin",
			CallbackPath:    "/auth/mobile-callback",
			DefaultProvider: "google",
		},
		Session: Session{
			RefreshInterval: 5 * time.Minute,
			CheckInterval:   30 * time.Second,
			ExpiryMargin:    10 * time.Minute,
		},
		Store: Store{
			Backend: "sqlite",
			Path:    "./data/authkit.db",
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "authkit:",
			},
		},
	}, nil
}

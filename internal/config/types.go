package config

// Config is the full worldgated configuration surface.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	World   WorldConfig    `json:"world"`
	Resets  ResetsConfig   `json:"resets"`
	Gateway GatewayConfig  `json:"gateway"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Logging LoggingConfig  `json:"logging"`
	Debug   DebugConfig    `json:"debug,omitempty"`
}

// WorldConfig controls admission and the tick loop.
//
// Defaults (when fields are omitted/zero):
//   - player_limit: 0 (unlimited, queueing never triggers)
//   - tick_interval: "50ms"
//   - idle_timeout: "0s" (disabled)
//   - grace_window: "0s" (disabled; reconnect grace is an extension point)
type WorldConfig struct {
	PlayerLimit  int    `json:"player_limit,omitempty"`
	TickInterval string `json:"tick_interval,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
	GraceWindow  string `json:"grace_window,omitempty"`
}

// ResetsConfig places the recurring content reset boundaries.
//
// Hours are local hour-of-day (0-23) in Timezone; weekly_day is 0=Sunday.
// currency_interval_days <= 0 disables the currency reset.
type ResetsConfig struct {
	Timezone             string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Paris"
	DailyHour            int    `json:"daily_hour"`
	WeeklyHour           int    `json:"weekly_hour"`
	WeeklyDay            int    `json:"weekly_day"`
	MonthlyHour          int    `json:"monthly_hour"`
	CurrencyIntervalDays int    `json:"currency_interval_days,omitempty"`
	CurrencyHour         int    `json:"currency_hour,omitempty"`
}

// GatewayConfig controls the websocket accept surface.
type GatewayConfig struct {
	Enabled   bool   `json:"enabled"`
	Addr      string `json:"addr,omitempty"` // default: "127.0.0.1:8085"
	JWTSecret string `json:"jwt_secret,omitempty"`
}

// StorageConfig controls the persistence layer used for reset timestamps
// and high-water counters.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./worldgate.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // sqlite
	Addr        string `json:"addr,omitempty"`         // redis
	Password    string `json:"password,omitempty"`     // redis
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite; Go duration string
}

// DebugConfig controls the pprof listener. A non-loopback addr requires a
// token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	Token   string `json:"token,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

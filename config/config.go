package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress     string        `mapstructure:"http_address"`
	RPCAddress      string        `mapstructure:"rpc_address"`
	MetricsAddress  string        `mapstructure:"metrics_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GameConfig struct {
	// DebugMoves enables move_piece_test, which bypasses the board rules.
	DebugMoves   bool          `mapstructure:"debug_moves"`
	IdleRoomTTL  time.Duration `mapstructure:"idle_room_ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type PayoutConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APISecret string        `mapstructure:"api_secret"`
	Token     string        `mapstructure:"token"`
	Amount    float64       `mapstructure:"amount"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	// Driver is "" (in-memory stats only), "gorm" or "postgres".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN is the libpq keyword/value connection string shared by both postgres drivers.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":5000")
	v.SetDefault("server.rpc_address", ":5001")
	v.SetDefault("server.metrics_address", ":9100")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("game.debug_moves", false)
	v.SetDefault("game.idle_room_ttl", time.Duration(0))
	v.SetDefault("game.reap_interval", time.Minute)

	v.SetDefault("payout.enabled", false)
	v.SetDefault("payout.base_url", "https://nixarcade-backend.vercel.app")
	v.SetDefault("payout.api_secret", "")
	v.SetDefault("payout.token", "rocky")
	v.SetDefault("payout.amount", 0.001)
	v.SetDefault("payout.timeout", 5*time.Second)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "snakesladders")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path if it exists. Every key has a default and
// can be overridden from the environment, e.g. SERVER_HTTP_ADDRESS or GAME_DEBUG_MOVES.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

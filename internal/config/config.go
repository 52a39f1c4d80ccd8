package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Affiliate  AffiliateConfig  `mapstructure:"affiliate"`
	Partners   PartnersConfig   `mapstructure:"partners"`
	CRM        CRMConfig        `mapstructure:"crm"`
	Board      BoardConfig      `mapstructure:"board"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Pull       ScheduleConfig   `mapstructure:"pull"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level    string `mapstructure:"level"`
	ErrorLog string `mapstructure:"error_log"`
}

type HTTPConfig struct {
	Addr      string          `mapstructure:"addr"`
	APIKey    string          `mapstructure:"api_key"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RPS    int           `mapstructure:"rps"`
	Window time.Duration `mapstructure:"window"`
}

// StorageConfig selects the snapshot store backend: file, badger or mysql.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	BadgerDir string `mapstructure:"badger_dir"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

// AffiliateConfig is the affiliate admin reporting API.
type AffiliateConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AdminURL    string        `mapstructure:"admin_url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	AffiliateID string        `mapstructure:"affiliate_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PartnersConfig is the partner API used for affiliate names and registration lookups.
type PartnersConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	UserIDPrefix string        `mapstructure:"user_id_prefix"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CRMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BoardConfig struct {
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type EnrichConfig struct {
	LookupURL          string        `mapstructure:"lookup_url"`
	Credentials        []string      `mapstructure:"credentials"`
	Capacity           int           `mapstructure:"capacity"`
	Window             time.Duration `mapstructure:"window"`
	AcquireTimeout     time.Duration `mapstructure:"acquire_timeout"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	CooldownMultiplier float64       `mapstructure:"cooldown_multiplier"`
	MaxCooldown        time.Duration `mapstructure:"max_cooldown"`
	CooldownJitter     float64       `mapstructure:"cooldown_jitter"`
	MaxCooldownRetries int           `mapstructure:"max_cooldown_retries"`
	ProgressEvery      int           `mapstructure:"progress_every"`
	Cache              string        `mapstructure:"cache"`
	CacheKey           string        `mapstructure:"cache_key"`
}

type ScheduleConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type JobsConfig struct {
	Intake       IntakeConfig       `mapstructure:"intake"`
	Registration BoardJobConfig     `mapstructure:"registration"`
	Sales        BoardJobConfig     `mapstructure:"sales"`
	Retention    RetentionJobConfig `mapstructure:"retention"`
}

type IntakeConfig struct {
	ScheduleConfig `mapstructure:",squash"`
	NewLeadsBoard  string `mapstructure:"new_leads_board"`
	NCSelfBoard    string `mapstructure:"nc_self_board"`
}

type BoardRef struct {
	Name               string `mapstructure:"name"`
	BoardID            string `mapstructure:"board_id"`
	TransactionBoardID string `mapstructure:"transaction_board_id"`
}

type BoardJobConfig struct {
	ScheduleConfig `mapstructure:",squash"`
	Boards         []BoardRef `mapstructure:"boards"`
}

type RetentionJobConfig struct {
	ScheduleConfig `mapstructure:",squash"`
	Boards         []BoardRef `mapstructure:"boards"`
	ExcludedGroups []string   `mapstructure:"excluded_groups"`
}

type SupervisorConfig struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	FailureDecay     float64       `mapstructure:"failure_decay"`
	FailureBackoff   time.Duration `mapstructure:"failure_backoff"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (LEADSYNC_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (LEADSYNC_HTTP_API_KEY -> http.api_key)
	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateServe checks what the reporting server and pull loop cannot start without.
func (c Config) ValidateServe() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.APIKey) == "" {
		errs = append(errs, errors.New("http.api_key is required"))
	}
	if c.Affiliate.Username == "" || c.Affiliate.Password == "" {
		errs = append(errs, errors.New("affiliate.username and affiliate.password are required"))
	}
	if c.Affiliate.AffiliateID == "" {
		errs = append(errs, errors.New("affiliate.affiliate_id is required"))
	}
	if c.Pull.Interval <= 0 {
		errs = append(errs, fmt.Errorf("pull.interval must be positive, got %s", c.Pull.Interval))
	}
	return errors.Join(errs...)
}

// ValidateJobs checks the settings shared by every board job.
func (c Config) ValidateJobs() error {
	var errs []error
	if c.Board.Token == "" {
		errs = append(errs, errors.New("board.token is required"))
	}
	if c.CRM.BaseURL == "" {
		errs = append(errs, errors.New("crm.base_url is required"))
	}
	return errors.Join(errs...)
}

// IntervalMinutes reports the pull interval the way /meta exposes it.
func (c Config) IntervalMinutes() int {
	return int(c.Pull.Interval / time.Minute)
}

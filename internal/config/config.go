package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "EPOCHLEDGER"

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	LedgerConfig     LedgerConfig
	SchedulerConfig  SchedulerConfig
	RpcConfig        RpcConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
	TracingConfig    TracingConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

// LedgerConfig scopes every read and write this process performs to a single node.
type LedgerConfig struct {
	NodeId           string
	ScopeId          string
	WeightConfigFile string
	ProofsEnabled    bool
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RpcConfig struct {
	GrpcPort int
	HttpPort int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

var (
	Debug = "debug"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	LedgerNodeId           = "ledger.node_id"
	LedgerScopeId          = "ledger.scope_id"
	LedgerWeightConfigFile = "ledger.weight_config_file"
	LedgerProofsEnabled    = "ledger.proofs_enabled"

	SchedulerEnabled  = "scheduler.enabled"
	SchedulerInterval = "scheduler.interval"

	RpcGrpcPort = "rpc.grpc_port"
	RpcHttpPort = "rpc.http_port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	TracingEnabled     = "tracing.enabled"
	TracingEndpoint    = "tracing.endpoint"
	TracingServiceName = "tracing.service_name"

	// subcommand flags
	EpochId             = "epoch.id"
	EpochPeriodStart    = "epoch.period_start"
	EpochPeriodEnd      = "epoch.period_end"
	EpochPoolTotal      = "epoch.pool_total_credits"
	PoolComponentId     = "pool.component_id"
	PoolAlgorithm       = "pool.algorithm_version"
	PoolAmount          = "pool.amount_credits"
	PoolInputs          = "pool.inputs"
	CurationEventId     = "curation.event_id"
	CurationIncluded    = "curation.included"
	EventsInputFile     = "events.input_file"
	EventsBatchSize     = "events.batch_size"
	StatementOutputFile = "statement.output_file"
	VerifyLedgerUrl     = "verify.ledger_url"
)

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		LedgerConfig: LedgerConfig{
			NodeId:           viper.GetString(normalizeFlagName(LedgerNodeId)),
			ScopeId:          viper.GetString(normalizeFlagName(LedgerScopeId)),
			WeightConfigFile: viper.GetString(normalizeFlagName(LedgerWeightConfigFile)),
			ProofsEnabled:    viper.GetBool(normalizeFlagName(LedgerProofsEnabled)),
		},

		SchedulerConfig: SchedulerConfig{
			Enabled:  viper.GetBool(normalizeFlagName(SchedulerEnabled)),
			Interval: viper.GetDuration(normalizeFlagName(SchedulerInterval)),
		},

		RpcConfig: RpcConfig{
			GrpcPort: viper.GetInt(normalizeFlagName(RpcGrpcPort)),
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		TracingConfig: TracingConfig{
			Enabled:     viper.GetBool(normalizeFlagName(TracingEnabled)),
			Endpoint:    viper.GetString(normalizeFlagName(TracingEndpoint)),
			ServiceName: viper.GetString(normalizeFlagName(TracingServiceName)),
		},
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.LedgerConfig.NodeId == "" {
		return errors.New("ledger.node-id is required")
	}
	return nil
}

// ValidateScope checks the settings needed by commands that create epochs or ingest events.
func (c *Config) ValidateScope() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.LedgerConfig.ScopeId == "" {
		return errors.New("ledger.scope-id is required")
	}
	return nil
}

func (c *Config) GetSchedulerInterval() time.Duration {
	if c.SchedulerConfig.Interval <= 0 {
		return time.Minute * 5
	}
	return c.SchedulerConfig.Interval
}

func (c *Config) String() string {
	return fmt.Sprintf("node=%s scope=%s db=%s@%s:%d/%s",
		c.LedgerConfig.NodeId,
		c.LedgerConfig.ScopeId,
		c.DatabaseConfig.User,
		c.DatabaseConfig.Host,
		c.DatabaseConfig.Port,
		c.DatabaseConfig.DbName,
	)
}

var kebabPattern = regexp.MustCompile(`-`)

// KebabToSnakeCase converts a flag name such as "database.db-name" into the
// viper key "database.db_name".
func KebabToSnakeCase(str string) string {
	return kebabPattern.ReplaceAllString(str, "_")
}

func normalizeFlagName(name string) string {
	return strings.ToLower(KebabToSnakeCase(name))
}

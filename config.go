package relink

// Config holds the configuration for the record service and its server.
type Config struct {
	// Store selects and configures the backing key-value store.
	Store StoreConfig `json:"store" yaml:"store"`
	// Auth holds the operator override credential.
	Auth AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`
	// Server configures the HTTP front end (optional for library use).
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	// Audit configures the mutation audit log (optional).
	Audit AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// StoreDriver selects a kv.Store implementation.
type StoreDriver string

// Supported store drivers.
const (
	DriverMemory   StoreDriver = "memory"
	DriverSQLite   StoreDriver = "sqlite"
	DriverPostgres StoreDriver = "postgres"
	DriverDynamoDB StoreDriver = "dynamodb"
)

// StoreConfig selects the backing store.
type StoreConfig struct {
	Driver StoreDriver `json:"driver" yaml:"driver"`
	// DSN is the SQLite path or Postgres connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Dynamo configures the DynamoDB driver.
	Dynamo DynamoConfig `json:"dynamo,omitempty" yaml:"dynamo,omitempty"`
}

// DynamoConfig configures the DynamoDB store driver.
type DynamoConfig struct {
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// AuthConfig holds the process-wide override credential. When presented as
// the token on update or delete it satisfies any ownership check. Empty
// disables the override entirely.
type AuthConfig struct {
	OverrideToken string `json:"override_token,omitempty" yaml:"override_token,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// HomeURL is where the root path and unknown short keys redirect to.
	HomeURL string `json:"home_url,omitempty" yaml:"home_url,omitempty"`
	// CORSOrigins restricts cross-origin access; empty allows any origin.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// AuditConfig configures the audit log sink. An empty driver disables
// auditing.
type AuditConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // "sqlite" or "postgres"
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

package config

// Config is the root configuration structure for helion.
// Serialised to ~/.helion/config.json.
type Config struct {
	Environment string          `mapstructure:"environment" json:"environment"` // "dev" or "prod"
	Server      ServerConfig    `mapstructure:"server"      json:"server"`
	Database    DatabaseConfig  `mapstructure:"database"    json:"database"`
	Ollama      OllamaConfig    `mapstructure:"ollama"      json:"ollama"`
	Jira        JiraConfig      `mapstructure:"jira"        json:"jira"`
	GitHub      GitHubConfig    `mapstructure:"github"      json:"github"`
	GitLab      GitLabConfig    `mapstructure:"gitlab"      json:"gitlab"`
	Retention   RetentionConfig `mapstructure:"retention"   json:"retention"`
	Auth        AuthConfig      `mapstructure:"auth"        json:"auth"`
}

// ServerConfig controls the HTTP API daemon.
type ServerConfig struct {
	// Port is the localhost HTTP port the API listens on (default: 8080).
	Port int `mapstructure:"port" json:"port"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// OllamaConfig controls the local LLM used for cluster reasoning.
// The generation options default to fully deterministic output.
type OllamaConfig struct {
	BaseURL    string `mapstructure:"base_url"    json:"base_url"`
	Model      string `mapstructure:"model"       json:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec" json:"timeout_sec"`
	// Temperature 0 with a fixed seed gives reproducible reasoning output.
	Temperature   float64 `mapstructure:"temperature"    json:"temperature"`
	TopP          float64 `mapstructure:"top_p"          json:"top_p"`
	RepeatPenalty float64 `mapstructure:"repeat_penalty" json:"repeat_penalty"`
	Seed          int     `mapstructure:"seed"           json:"seed"`
}

// JiraConfig holds Jira Cloud credentials for ticket export.
// Export is refused until BaseURL, Email, APIToken and ProjectKey are all set.
type JiraConfig struct {
	BaseURL    string `mapstructure:"base_url"    json:"base_url"`
	Email      string `mapstructure:"email"       json:"email"`
	APIToken   string `mapstructure:"api_token"   json:"api_token"`
	ProjectKey string `mapstructure:"project_key" json:"project_key"`
	// EpicLinkFieldID is the custom field id for classic projects
	// (e.g. "customfield_10014"); empty uses the parent field.
	EpicLinkFieldID string `mapstructure:"epic_link_field_id" json:"epic_link_field_id"`
	IssueType       string `mapstructure:"issue_type"         json:"issue_type"`
	EpicIssueType   string `mapstructure:"epic_issue_type"    json:"epic_issue_type"`
	TimeoutSec      int    `mapstructure:"timeout_sec"        json:"timeout_sec"`
}

// GitHubConfig holds credentials for exporting tickets as GitHub issues.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Owner string `mapstructure:"owner" json:"owner"`
	Repo  string `mapstructure:"repo"  json:"repo"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host" json:"host"`
}

// GitLabConfig holds credentials for exporting tickets as GitLab issues.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
	// Project is the numeric id or "group/project" path of the target project.
	Project string `mapstructure:"project" json:"project"`
}

// RetentionConfig controls deletion of old findings.
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Hours is the retention window; findings older than this are deleted.
	Hours int `mapstructure:"hours" json:"hours"`
	// Schedule is a cron expression for automatic runs inside the server
	// (e.g. "@hourly"). Empty disables scheduled runs.
	Schedule string `mapstructure:"schedule" json:"schedule"`
}

// AuthConfig controls JWT authentication.
type AuthConfig struct {
	// Enabled requires a bearer token on all data routes. When false the API
	// assumes a synthetic local admin (development mode).
	Enabled       bool   `mapstructure:"enabled"        json:"enabled"`
	JWTSecret     string `mapstructure:"jwt_secret"     json:"jwt_secret"`
	ExpireMinutes int    `mapstructure:"expire_minutes" json:"expire_minutes"`
}

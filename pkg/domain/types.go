package domain

// Source describes where a bulk domain list is read from.
type Source struct {
	ID       string
	Location string
	Auth     AuthConfig
}

// AuthConfig defines optional authentication for a remote source.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
	Header   string `mapstructure:"header"`
	Scheme   string `mapstructure:"scheme"`
}

// ParseStats summarises list parsing results.
type ParseStats struct {
	TotalLines int
	Domains    int
	Duplicates int
	Invalid    int
}

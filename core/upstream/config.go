package upstream

// Config holds the upstream endpoints.
type Config struct {
	// RevisionURL returns a JSON list of commits, newest first.
	RevisionURL string `mapstructure:"revision_url" default:"https://gitlab.com/api/v4/projects/gamedata%2Frepo/repository/commits?per_page=1"`
	// FileURL is the raw file template. {revision} and {path} are substituted.
	FileURL string `mapstructure:"file_url" default:"https://gitlab.com/gamedata/repo/-/raw/{revision}/{path}"`
	// Token is sent as a bearer token when set.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds bounds connecting and waiting for response headers. Body
	// transfers are bounded only by the request context.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"120"`
	// UserAgent identifies the client.
	UserAgent string `mapstructure:"user_agent" default:"gamedata-sync"`
}

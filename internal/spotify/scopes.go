package spotify

// DefaultScopes are requested on every authorization. Spotify has no
// incremental consent, so the list covers playback plus the library and
// playlist scopes the account is expected to grant up front.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
	"user-library-read",
	"user-library-modify",
	"user-read-recently-played",
}

// Accounts service endpoints.
const (
	AuthURL  = "https://accounts.spotify.com/authorize"
	TokenURL = "https://accounts.spotify.com/api/token"
)

// DefaultAPIBaseURL is the Web API root.
const DefaultAPIBaseURL = "https://api.spotify.com/v1"

package models

import (
	"path"

	"github.com/kardianos/osext"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where Encore stores all of its data - defaults to the /data subdirectory of the folder, the
	// Encore executable resides in
	DataDir string `json:"dataDir"`
	// The credentials for the default admin account that is created on startup
	DefaultAdmin *DefaultAdminConfig `json:"defaultAdmin"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress"`
	// The restrictions for singers filing song requests
	Restrictions SingerRestrictionConfig `json:"restrictions"`
	// Credentials for the Spotify Web API used by the catalog importer
	Spotify SpotifyConfig `json:"spotify"`
	// Settings for push notifications to singers
	Push PushConfig `json:"push"`
}

// The DefaultAdminConfig struct configures the default admin that can log in
// In a later version, this will be replaced by a full user management
type DefaultAdminConfig struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// SingerRestrictionConfig is the configuration for restricting singers when filing requests
type SingerRestrictionConfig struct {
	// MaxOpenRequestsPerSinger is the number of undecided or eligible requests one singer may have
	// at the same event at the same time. Zero disables the limit
	MaxOpenRequestsPerSinger uint `json:"maxOpenRequestsPerSinger"`
	// Can be set to `true` to allow two requests for the same song at one event
	AllowDuplicateSongRequests bool `json:"allowDuplicateSongRequests"`
	// A list of user names that have the restrictions lifted (regulars, the host's friends...)
	SingerWhitelist []string `json:"singerWhitelist"`
}

// SpotifyConfig holds the client credentials for the Spotify Web API. If either value is empty,
// the Spotify importer is disabled
type SpotifyConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// PushConfig configures the outbound push notification dispatcher
type PushConfig struct {
	// Can be set to `false` to silence all outbound notifications
	Enabled bool `json:"enabled"`
	// The URL of the Expo push endpoint - overridable mainly for testing
	URL string `json:"url"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir: path.Join(execDir, "data"),
		DefaultAdmin: &DefaultAdminConfig{
			Name:     "admin",
			Password: "changeme",
		},
		Restrictions: SingerRestrictionConfig{
			MaxOpenRequestsPerSinger: 2,
			SingerWhitelist:          []string{},
		},
		Push: PushConfig{
			Enabled: true,
			URL:     "https://exp.host/--/api/v2/push/send",
		},
		ListenAddress: ":3000",
	}, nil
}

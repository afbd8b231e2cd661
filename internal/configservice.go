package internal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
	"golang.org/x/net/context"
)

// ConfigService gives the authenticated user access to parts of the application's configuration
type ConfigService interface {
	// WhitelistedSingers returns the list of user names for whom the singer restrictions
	// (open-request limit, duplicate-song block) are lifted
	WhitelistedSingers(ctx context.Context) []string
	// AddToWhitelist adds a user name to the list of singers without restrictions
	AddToWhitelist(ctx context.Context, name string) error
	// RemoveFromWhitelist removes a user name from the list of singers without restrictions
	RemoveFromWhitelist(ctx context.Context, name string) error
	// IsWhitelisted checks if the given user name has been whitelisted
	IsWhitelisted(name string) bool
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file and returns it
	LoadFromFile(ctx context.Context, filename string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

// Simple index structure to speed up whitelist lookups
type whitelistIdx struct {
	sync.RWMutex
	data map[string]bool
}

type configService struct {
	configFilename string
	config         *models.AppConfig
	whitelist      *whitelistIdx
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string) ConfigService {
	return &configService{
		configFilename: configFilename,
		whitelist: &whitelistIdx{
			data: make(map[string]bool),
		},
	}
}

func (s *configService) whitelistIdxToSlice() []string {
	ret := []string{}
	for item := range s.whitelist.data {
		ret = append(ret, item)
	}
	return ret
}

func (s *configService) buildWhitelistIdx(ctx context.Context) {
	logger := ctxhelper.Logger(ctx)
	logger.Info("Rebuilding index of whitelisted singers...")
	s.whitelist.Lock()
	defer s.whitelist.Unlock()
	s.whitelist.data = make(map[string]bool)
	if s.config != nil {
		for _, name := range s.config.Restrictions.SingerWhitelist {
			s.whitelist.data[strings.ToLower(name)] = true
		}
	}
}

// WhitelistedSingers returns the list of user names for whom the singer restrictions are lifted
func (s *configService) WhitelistedSingers(ctx context.Context) []string {
	s.whitelist.RLock()
	defer s.whitelist.RUnlock()
	return s.whitelistIdxToSlice()
}

// AddToWhitelist adds a user name to the list of singers without restrictions
func (s *configService) AddToWhitelist(ctx context.Context, name string) error {
	logger := ctxhelper.Logger(ctx)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return MakeValidationError("User name missing", "name")
	}
	if s.IsWhitelisted(name) {
		// This singer is already whitelisted - just ignore
		return nil
	}
	logger.WithField(log.FldUser, name).Info("Adding singer to whitelist")
	s.whitelist.Lock()
	defer s.whitelist.Unlock()
	s.whitelist.data[name] = true
	if s.config != nil {
		s.config.Restrictions.SingerWhitelist = s.whitelistIdxToSlice()
	}
	return s.Write(ctx)
}

// RemoveFromWhitelist removes a user name from the list of singers without restrictions
func (s *configService) RemoveFromWhitelist(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !s.IsWhitelisted(name) {
		return repos.ErrEntityNotExisting
	}
	s.whitelist.Lock()
	defer s.whitelist.Unlock()
	delete(s.whitelist.data, name)
	if s.config != nil {
		s.config.Restrictions.SingerWhitelist = s.whitelistIdxToSlice()
	}
	return s.Write(ctx)
}

// IsWhitelisted checks if the given user name has been whitelisted
func (s *configService) IsWhitelisted(name string) bool {
	s.whitelist.RLock()
	defer s.whitelist.RUnlock()
	if _, ok := s.whitelist.data[strings.ToLower(name)]; ok {
		return true
	}
	return false
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file and returns it
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Loading configuration file")
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	}
	defer f.Close()
	if err = json.NewDecoder(f).Decode(&conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
	}
	s.config = conf
	s.buildWhitelistIdx(ctx)
	return nil
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig(ctx)
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/jmoiron/sqlx"
	"github.com/kardianos/osext"
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/sirupsen/logrus"
	encore "github.com/tbrandt/encore/internal"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/ingest"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/migrate"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/notify"
	craterepo "github.com/tbrandt/encore/internal/repos/crate/sqlite"
	eventrepo "github.com/tbrandt/encore/internal/repos/event/sqlite"
	requestrepo "github.com/tbrandt/encore/internal/repos/request/sqlite"
	sessionrepo "github.com/tbrandt/encore/internal/repos/session/inmem"
	songrepo "github.com/tbrandt/encore/internal/repos/song/sqlite"
	userrepo "github.com/tbrandt/encore/internal/repos/user/inmem"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/net/context"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	appName    = "Encore"
	appVersion = "0.1.0"
	dbFile     = "encore.db"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

// makeSpotifySource builds the Spotify track source when API credentials are configured. The API
// client carries a client-credentials token source that refreshes itself - no token state lives
// in the importer
func makeSpotifySource(ctx context.Context, conf models.SpotifyConfig, logger *logrus.Entry) ingest.TrackSource {
	if conf.ClientID == "" || conf.ClientSecret == "" {
		logger.Info("No Spotify credentials configured - Spotify import is disabled")
		return nil
	}
	ccfg := &clientcredentials.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	client := spotify.New(ccfg.Client(ctx))
	return ingest.NewSpotifyImporter(client, logger)
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	flag.Parse()

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger)

	// Load the main configuration file
	cs := encore.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig(ctx)

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the database connection and perform pending migrations
	dbFileName := path.Join(conf.DataDir, dbFile)
	var db *sqlx.DB
	if db, err = sqlx.Open("sqlite3", dbFileName); err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	// Prepare the in-memory user repo and fill it with the default admin
	// TODO: Implement proper user management with database backend
	userRepo := userrepo.New()
	u := models.User{
		Name:     strings.ToLower(conf.DefaultAdmin.Name),
		FullName: conf.DefaultAdmin.Name,
		Role:     models.RoleAdmin,
	}
	err = u.SetPassword(conf.DefaultAdmin.Password)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set password for default admin")
	}
	userRepo.Create(&u)
	logger.Info(fmt.Sprintf("Created user '%s' with password hash %s", u.Name, u.PasswordHash))

	songRepo := songrepo.New(db, logger)
	requestRepo := requestrepo.New(db, logger)
	crateRepo := craterepo.New(db, logger)
	eventRepo := eventrepo.New(db, logger)
	sessionRepo := sessionrepo.New()

	// Push notifications are a best-effort channel - when disabled, the services talk to a no-op
	var notifier notify.Notifier = notify.Nop{}
	if conf.Push.Enabled {
		notifier = notify.NewExpo(conf.Push.URL, logger)
	}

	songSrv := encore.NewSongService(songRepo, logger)
	evSrv := encore.NewEventService(eventRepo, logger)
	crateSrv := encore.NewCrateService(crateRepo, songRepo, eventRepo, logger)
	reqSrv := encore.NewRequestService(requestRepo, songRepo, userRepo, eventRepo, crateRepo, cs, notifier, logger)
	sessSrv := encore.NewSessionService(sessionRepo, userRepo, logger)
	importSrv := encore.NewImportService(songSrv, makeSpotifySource(ctx, conf.Spotify, logger), logger)

	// Auto-select an event with matching start and end times
	evts, _ := eventRepo.GetByDate(time.Now())
	if len(evts) > 0 {
		logger.Infof("Auto-selecting event %d (%s) as current event", evts[0].ID, evts[0].Name)
		evSrv.SetCurrentEvent(ctx, evts[0].ID)
	}

	httpLogger := logger.WithField(log.FldTransport, "HTTP")

	h := encore.MakeHTTPHandler(
		songSrv,
		reqSrv,
		crateSrv,
		evSrv,
		sessSrv,
		cs,
		importSrv,
		httpLogger,
	)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, h)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := strings.Split(conf.ListenAddress, ":")[1]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if _, err := http.Get(url); err == nil {
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}

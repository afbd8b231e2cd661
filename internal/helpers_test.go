package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/migrate"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/notify"
	"github.com/tbrandt/encore/internal/repos"
	craterepo "github.com/tbrandt/encore/internal/repos/crate/sqlite"
	eventrepo "github.com/tbrandt/encore/internal/repos/event/sqlite"
	requestrepo "github.com/tbrandt/encore/internal/repos/request/sqlite"
	songrepo "github.com/tbrandt/encore/internal/repos/song/sqlite"
	userrepo "github.com/tbrandt/encore/internal/repos/user/inmem"
	"golang.org/x/net/context"
)

// testConfig is a ConfigService stand-in whose restriction settings the tests control directly
type testConfig struct {
	conf      models.AppConfig
	whitelist map[string]bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		conf: models.AppConfig{
			Restrictions: models.SingerRestrictionConfig{
				MaxOpenRequestsPerSinger: 0,
			},
		},
		whitelist: map[string]bool{},
	}
}

func (c *testConfig) WhitelistedSingers(ctx context.Context) []string {
	out := []string{}
	for name := range c.whitelist {
		out = append(out, name)
	}
	return out
}

func (c *testConfig) AddToWhitelist(ctx context.Context, name string) error {
	c.whitelist[name] = true
	return nil
}

func (c *testConfig) RemoveFromWhitelist(ctx context.Context, name string) error {
	delete(c.whitelist, name)
	return nil
}

func (c *testConfig) IsWhitelisted(name string) bool {
	return c.whitelist[name]
}

func (c *testConfig) Load(ctx context.Context) error                          { return nil }
func (c *testConfig) LoadFromFile(ctx context.Context, filename string) error { return nil }
func (c *testConfig) Write(ctx context.Context) error                         { return nil }
func (c *testConfig) WriteToFile(ctx context.Context, filename string) error  { return nil }

func (c *testConfig) GetConfig(ctx context.Context) models.AppConfig {
	return c.conf
}

// recordingNotifier keeps every delivered message so tests can check what went out
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []notify.Message
	tokens   []string
	failNext error
}

func (n *recordingNotifier) Notify(ctx context.Context, pushToken string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext != nil {
		err := n.failNext
		n.failNext = nil
		return err
	}
	n.sent = append(n.sent, msg)
	n.tokens = append(n.tokens, pushToken)
	return nil
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message{}, n.sent...)
}

// testEnv wires all repositories and services against a fresh in-memory database
type testEnv struct {
	db       *sqlx.DB
	songRepo repos.SongRepo
	reqRepo  repos.RequestRepo
	crRepo   repos.CrateRepo
	evRepo   repos.EventRepo
	userRepo *userrepo.UserRepo

	config   *testConfig
	notifier *recordingNotifier

	songs    SongService
	requests RequestService
	crates   CrateService
	events   EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, entry))

	env := &testEnv{
		db:       db,
		songRepo: songrepo.New(db, entry),
		reqRepo:  requestrepo.New(db, entry),
		crRepo:   craterepo.New(db, entry),
		evRepo:   eventrepo.New(db, entry),
		userRepo: userrepo.New(),
		config:   newTestConfig(),
		notifier: &recordingNotifier{},
	}
	env.songs = NewSongService(env.songRepo, entry)
	env.events = NewEventService(env.evRepo, entry)
	env.crates = NewCrateService(env.crRepo, env.songRepo, env.evRepo, entry)
	env.requests = NewRequestService(
		env.reqRepo, env.songRepo, env.userRepo, env.evRepo, env.crRepo,
		env.config, env.notifier, entry,
	)
	return env
}

func testCtx() context.Context {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return context.WithValue(context.Background(), ctxhelper.KeyLogger, logrus.NewEntry(logger))
}

// ctxWithUser returns a context carrying the given user as the authenticated caller
func ctxWithUser(u *models.User) context.Context {
	return context.WithValue(testCtx(), ctxhelper.KeyUser, *u)
}

func (e *testEnv) mustCreateEvent(t *testing.T, name string) *models.Event {
	t.Helper()
	ev := &models.Event{
		Name:     name,
		Venue:    "Moonlight Bar",
		Status:   models.EventStatusActive,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(4 * time.Hour),
	}
	require.NoError(t, e.evRepo.Create(ev))
	return ev
}

func (e *testEnv) mustCreateSong(t *testing.T, title, artist string) *models.Song {
	t.Helper()
	res, err := e.songs.SaveFromSource(testCtx(), &models.Song{
		Title:  title,
		Artist: artist,
		Source: models.SourceManual,
	})
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	return res.Song
}

func (e *testEnv) mustCreateUser(t *testing.T, name, role string) *models.User {
	t.Helper()
	u := &models.User{Name: name, FullName: name, Role: role, ExpoPushToken: "ExponentPushToken[" + name + "]"}
	require.NoError(t, e.userRepo.Create(u))
	return u
}

func (e *testEnv) mustFileRequest(t *testing.T, eventID, songID uint, requester *models.User) *models.RequestDetails {
	t.Helper()
	details, err := e.requests.Create(ctxWithUser(requester), &models.Request{
		EventID: eventID,
		SongID:  songID,
	})
	require.NoError(t, err)
	return details
}

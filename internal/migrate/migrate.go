// Package migrate handles SQL database migration for the internal Encore database
package migrate

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// Execute runs the current DB migration on the given database
func (mig *dbMigration) Execute(db *sqlx.DB, logger *logrus.Entry) error {
	// Check if the migration has already run
	query := `SELECT success FROM Migrations WHERE version = $1`
	var success = false
	err := db.QueryRow(query, mig.Version).Scan(&success)
	if err != nil {
		switch {
		case err != sql.ErrNoRows:
			logger.WithError(err).Error("Failed to fetch version information")
			return err
		}
	}
	if !success {
		// We need to execute this migration
		logger.Infof("Executing DB migration #%d", mig.Version)
		for i, query := range mig.Queries {
			logger.Infof("Query %d of %d...", (i + 1), len(mig.Queries))
			if _, err := db.Exec(query); err != nil {
				logger.WithError(err).Errorf("Query #%d failed", (i + 1))
				db.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 0)`, mig.Version)
				return err
			}
		}
		// Queries executed successfully - save our status
		db.Exec(`REPLACE INTO Migrations(version, success) VALUES($1, 1)`, mig.Version)
	}
	return nil
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS Migrations (
                version   INTEGER NOT NULL,
                success   INTEGER NOT NULL DEFAULT 0,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE "Songs" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    title VARCHAR(256) NOT NULL,
                    normalizedTitle VARCHAR(256) NOT NULL,
                    artist VARCHAR(256) NOT NULL,
                    normalizedArtist VARCHAR(256) NOT NULL,
                    album VARCHAR(256) NOT NULL DEFAULT '',
                    duration INTEGER(8) NOT NULL DEFAULT 0,
                    coverUrl VARCHAR(512) NOT NULL DEFAULT '',
                    videoUrl VARCHAR(512) NOT NULL DEFAULT '',
                    source VARCHAR(16) NOT NULL,
                    sourceExternalId VARCHAR(64) NOT NULL DEFAULT '',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE UNIQUE INDEX idx_song_dedup ON Songs (
                    source, sourceExternalId, normalizedTitle, normalizedArtist
                );`,
				`CREATE INDEX idx_song_search ON Songs (title ASC, artist ASC, album ASC);`,
				`CREATE TABLE "Events" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    name VARCHAR(128) NOT NULL DEFAULT '',
                    description TEXT NOT NULL DEFAULT '',
                    venue VARCHAR(128) NOT NULL DEFAULT '',
                    status VARCHAR(16) NOT NULL DEFAULT 'draft',
                    createdBy INTEGER NOT NULL DEFAULT 0,
                    startsAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    endsAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Requests" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    eventId INTEGER NOT NULL,
                    songId INTEGER NOT NULL,
                    requesterId INTEGER NOT NULL,
                    status VARCHAR(16) NOT NULL DEFAULT 'pending_admin',
                    videoUrl VARCHAR(512) NOT NULL DEFAULT '',
                    rejectionReason VARCHAR(1024) NOT NULL DEFAULT '',
                    fastPass INTEGER NOT NULL DEFAULT 0,
                    inCrate INTEGER NOT NULL DEFAULT 0,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "RequestSingers" (
                    requestId INTEGER NOT NULL,
                    userId INTEGER NOT NULL,
                    PRIMARY KEY(requestId, userId)
                );`,
				`CREATE TABLE "Crates" (
                    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
                    eventId INTEGER NOT NULL UNIQUE,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "CrateSongs" (
                    crateId INTEGER NOT NULL,
                    songId INTEGER NOT NULL,
                    addedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    PRIMARY KEY(crateId, songId)
                );`,
				`CREATE INDEX idx_request_queue ON Requests (eventId ASC, status ASC, createdAt ASC);`,
				`CREATE INDEX idx_request_singer ON Requests (eventId ASC, requesterId ASC);`,
				`CREATE INDEX idx_request_song ON Requests (eventId ASC, songId ASC);`,
			},
		},
	}
}

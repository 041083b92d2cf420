package db

import (
	"database/sql"
	"strings"

	"github.com/sirupsen/logrus"
)

// DataMigration represents a schema change AutoMigrate cannot express
type DataMigration struct {
	Version     string
	Description string
	Up          func(*sql.DB) error
	Down        func(*sql.DB) error
}

// GetDataMigrations return all constraint migrations in apply order
func GetDataMigrations() []DataMigration {
	return []DataMigration{
		{
			Version:     "dex_001",
			Description: "Cascade makers with their owner",
			Up: execAll(`ALTER TABLE makers ADD CONSTRAINT fk_makers_owner
				FOREIGN KEY (owner) REFERENCES users(address) ON DELETE CASCADE`),
			Down: execAll(`ALTER TABLE makers DROP CONSTRAINT IF EXISTS fk_makers_owner`),
		},
		{
			Version:     "dex_002",
			Description: "Cascade grid makers with their bot",
			Up: execAll(
				`ALTER TABLE bots ADD CONSTRAINT fk_bots_owner
				FOREIGN KEY (owner) REFERENCES users(address) ON DELETE CASCADE`,
				`ALTER TABLE makers ADD CONSTRAINT fk_makers_bot
				FOREIGN KEY (bot_id) REFERENCES bots(id) ON DELETE CASCADE`,
			),
			Down: execAll(
				`ALTER TABLE makers DROP CONSTRAINT IF EXISTS fk_makers_bot`,
				`ALTER TABLE bots DROP CONSTRAINT IF EXISTS fk_bots_owner`,
			),
		},
		{
			Version:     "dex_003",
			Description: "Protect filled makers from hard delete",
			Up: execAll(
				`ALTER TABLE takers ADD CONSTRAINT fk_takers_maker
				FOREIGN KEY (maker_id) REFERENCES makers(id) ON DELETE RESTRICT`,
				`ALTER TABLE takers ADD CONSTRAINT fk_takers_user
				FOREIGN KEY (taker) REFERENCES users(address) ON DELETE CASCADE`,
			),
			Down: execAll(
				`ALTER TABLE takers DROP CONSTRAINT IF EXISTS fk_takers_user`,
				`ALTER TABLE takers DROP CONSTRAINT IF EXISTS fk_takers_maker`,
			),
		},
		{
			Version:     "dex_004",
			Description: "Bound maker filled amount",
			Up: execAll(
				`ALTER TABLE makers ADD CONSTRAINT chk_makers_filled
				CHECK (filled >= 0 AND filled <= amount)`,
				`ALTER TABLE makers ADD CONSTRAINT chk_makers_status
				CHECK (status <> 'FILLED' OR filled = amount)`,
			),
			Down: execAll(
				`ALTER TABLE makers DROP CONSTRAINT IF EXISTS chk_makers_status`,
				`ALTER TABLE makers DROP CONSTRAINT IF EXISTS chk_makers_filled`,
			),
		},
		{
			Version:     "dex_005",
			Description: "Staking rows reference users",
			Up: execAll(
				`ALTER TABLE staking_entries ADD CONSTRAINT fk_staking_entries_user
				FOREIGN KEY (user_address) REFERENCES users(address) ON DELETE CASCADE`,
				`ALTER TABLE staking_fees_entries ADD CONSTRAINT chk_staking_fees_amount
				CHECK (amount >= 0)`,
			),
			Down: execAll(
				`ALTER TABLE staking_fees_entries DROP CONSTRAINT IF EXISTS chk_staking_fees_amount`,
				`ALTER TABLE staking_entries DROP CONSTRAINT IF EXISTS fk_staking_entries_user`,
			),
		},
		{
			Version:     "dex_006",
			Description: "Maker is FILLED exactly when filled equals amount",
			Up: execAll(
				`UPDATE makers SET status = 'FILLED' WHERE status = 'CANCELLED' AND filled = amount`,
				`ALTER TABLE makers DROP CONSTRAINT IF EXISTS chk_makers_status`,
				`ALTER TABLE makers ADD CONSTRAINT chk_makers_status
				CHECK ((status = 'FILLED') = (filled = amount))`,
			),
			Down: execAll(
				`ALTER TABLE makers DROP CONSTRAINT IF EXISTS chk_makers_status`,
				`ALTER TABLE makers ADD CONSTRAINT chk_makers_status
				CHECK (status <> 'FILLED' OR filled = amount)`,
			),
		},
	}
}

func execAll(statements ...string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		for _, stmt := range statements {
			if _, err := db.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// RunDataMigrations applies every migration not yet recorded in schema_migrations_log
func RunDataMigrations(db *sql.DB) error {
	for _, migration := range GetDataMigrations() {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations_log WHERE version = $1",
			migration.Version,
		).Scan(&count)

		if err != nil {
			if !strings.Contains(err.Error(), "does not exist") {
				return err
			}
			logrus.Info("Creating schema_migrations_log table")
			if _, createErr := db.Exec(`
				CREATE TABLE IF NOT EXISTS schema_migrations_log (
					id SERIAL PRIMARY KEY,
					version VARCHAR(50) NOT NULL UNIQUE,
					description TEXT,
					executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				)
			`); createErr != nil {
				return createErr
			}
			count = 0
		}

		if count > 0 {
			logrus.Debugf("Data migration %s already applied", migration.Version)
			continue
		}

		logrus.WithField("version", migration.Version).Infof("Running data migration: %s", migration.Description)
		if err := migration.Up(db); err != nil {
			return err
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations_log (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			return err
		}
	}
	return nil
}

// RollbackDataMigration reverts one recorded migration
func RollbackDataMigration(db *sql.DB, version string) error {
	for _, migration := range GetDataMigrations() {
		if migration.Version != version {
			continue
		}
		if err := migration.Down(db); err != nil {
			return err
		}
		_, err := db.Exec("DELETE FROM schema_migrations_log WHERE version = $1", version)
		return err
	}
	return nil
}

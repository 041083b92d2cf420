package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"dex-backend/internal/config"
	"dex-backend/internal/db"

	"github.com/lib/pq"
)

// amount-like columns must hold any uint256
var numericColumns = map[string][]string{
	"makers":               {"amount", "price", "filled"},
	"bots":                 {"step", "price", "maker_fees", "upper_bound", "lower_bound", "fees_earned"},
	"takers":               {"taker_amount", "fees"},
	"staking_entries":      {"amount"},
	"staking_fees_entries": {"amount"},
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	fix := flag.Bool("fix", false, "Apply missing constraint migrations")
	flag.Parse()

	fmt.Println("🔍 Verifying database connection and schema...")
	fmt.Println(strings.Repeat("=", 60))

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gdb, err := db.Open(config.AppConfig.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	problems := 0
	for table, columns := range numericColumns {
		problems += checkNumeric(sqlDB, table, columns)
	}

	applied, err := appliedMigrations(sqlDB)
	if err != nil {
		log.Fatalf("Failed to read schema_migrations_log: %v", err)
	}
	var missing []string
	for _, m := range db.GetDataMigrations() {
		if applied[m.Version] {
			fmt.Printf("✅ %s %s\n", m.Version, m.Description)
			continue
		}
		fmt.Printf("❌ %s %s is not applied\n", m.Version, m.Description)
		missing = append(missing, m.Version)
	}

	if len(missing) > 0 && *fix {
		fmt.Println("\n🔧 Applying missing migrations...")
		if err := db.RunDataMigrations(sqlDB); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		fmt.Println("✅ Migrations applied")
		missing = nil
	}

	fmt.Println(strings.Repeat("=", 60))
	if problems > 0 || len(missing) > 0 {
		fmt.Printf("❌ %d column problems, %d missing migrations\n", problems, len(missing))
		return
	}
	fmt.Println("✅ Schema looks good")
}

func checkNumeric(sqlDB *sql.DB, table string, columns []string) int {
	rows, err := sqlDB.Query(`
		SELECT column_name, data_type, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		AND column_name = ANY($2)
	`, table, pq.Array(columns))
	if err != nil {
		log.Fatalf("Failed to query columns of %s: %v", table, err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(columns))
	problems := 0
	for rows.Next() {
		var name, dataType string
		var precision, scale sql.NullInt64
		if err := rows.Scan(&name, &dataType, &precision, &scale); err != nil {
			log.Fatalf("Failed to scan column of %s: %v", table, err)
		}
		found[name] = true
		if dataType != "numeric" || precision.Int64 < 78 || scale.Int64 != 0 {
			fmt.Printf("❌ %s.%s is %s(%d,%d), need numeric(78,0)\n", table, name, dataType, precision.Int64, scale.Int64)
			problems++
		}
	}
	for _, c := range columns {
		if !found[c] {
			fmt.Printf("❌ %s.%s does not exist\n", table, c)
			problems++
		}
	}
	if problems == 0 {
		fmt.Printf("✅ %s amounts are numeric(78,0)\n", table)
	}
	return problems
}

func appliedMigrations(sqlDB *sql.DB) (map[string]bool, error) {
	applied := make(map[string]bool)
	rows, err := sqlDB.Query("SELECT version FROM schema_migrations_log")
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return applied, nil
		}
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

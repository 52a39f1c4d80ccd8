package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmehdipour/leadsync/internal/config"
	"github.com/jmehdipour/leadsync/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL document table and the ClickHouse change log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.MySQL.DSN == "" && cfg.ClickHouse.DSN == "" {
			return fmt.Errorf("neither mysql.dsn nor clickhouse.dsn is set")
		}

		if cfg.MySQL.DSN != "" {
			if err := migrate(cfg.MySQL, db.OpenMySQL, "001_init.sql"); err != nil {
				return fmt.Errorf("mysql: %w", err)
			}
			fmt.Println(">> MySQL migration complete")
		}
		if cfg.ClickHouse.DSN != "" {
			if err := migrate(cfg.ClickHouse, db.OpenClickHouse, "002_clickhouse.sql"); err != nil {
				return fmt.Errorf("clickhouse: %w", err)
			}
			fmt.Println(">> ClickHouse migration complete")
		}
		return nil
	},
}

func migrate(c config.DatabaseConfig, open func(config.DatabaseConfig) (*sqlx.DB, error), file string) error {
	sqlDB, err := open(c)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sqlPath := filepath.Join("migrations", file)
	sqlBytes, err := os.ReadFile(sqlPath)
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", sqlPath, err)
	}
	for _, stmt := range statements(string(sqlBytes)) {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// statements splits a migration file on ';', dropping comment-only chunks.
// Neither driver runs multi-statement strings by default.
func statements(sql string) []string {
	var out []string
	for _, chunk := range strings.Split(sql, ";") {
		var kept []string
		for _, line := range strings.Split(chunk, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(kept, "\n")))
		}
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

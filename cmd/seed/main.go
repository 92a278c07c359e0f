// Command seed loads the development registry fixture into the
// mock_government_records table. Safe to run repeatedly.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/veriflow-id/veriflow/internal/config"
	"github.com/veriflow-id/veriflow/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("finalize configuration: %w", err)
	}

	logger := logging.New(&cfg.Logging)

	sqlDB, err := sql.Open("pgx", cfg.Database.Dsn())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnTimeoutDuration())
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	for _, record := range seedRecords {
		_, err := sqlDB.ExecContext(context.Background(), `
			INSERT INTO mock_government_records
				(document_number, document_type, first_name, last_name, date_of_birth, address, is_valid, is_flagged, flag_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
			ON CONFLICT (document_number) DO UPDATE SET
				document_type = EXCLUDED.document_type,
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				date_of_birth = EXCLUDED.date_of_birth,
				address = EXCLUDED.address,
				is_valid = EXCLUDED.is_valid,
				is_flagged = EXCLUDED.is_flagged,
				flag_reason = EXCLUDED.flag_reason`,
			record.DocumentNumber, record.DocumentType, record.FirstName,
			record.LastName, record.DateOfBirth, record.Address,
			record.IsValid, record.IsFlagged, record.FlagReason)
		if err != nil {
			return fmt.Errorf("seed record %s: %w", record.DocumentNumber, err)
		}
	}

	logger.Info("registry seeded", "records", len(seedRecords))
	return nil
}

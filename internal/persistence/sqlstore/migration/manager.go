package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"time"
)

// Config controls how a Manager reads and validates migrations.
type Config struct {
	// Dir is the directory inside the filesystem that holds the migration files.
	Dir string
	// VerifyChecksum rejects runs where an applied file no longer matches its recorded checksum.
	VerifyChecksum bool
}

type manager struct {
	scanner  Scanner
	executor Executor
	config   Config
	logger   *slog.Logger
}

// NewManager wires a scanner and an executor into a Manager.
func NewManager(scanner Scanner, executor Executor, config Config, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		scanner:  scanner,
		executor: executor,
		config:   config,
		logger:   logger.With("component", "migration"),
	}
}

// NewFSManager builds a Manager reading from fsys and executing against executor.
func NewFSManager(fsys fs.FS, executor Executor, config Config, logger *slog.Logger) Manager {
	return NewManager(NewScanner(fsys), executor, config, logger)
}

// RunMigrations executes all pending migrations in sequential order
func (m *manager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending", len(pending))
	for i, migration := range pending {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(pending),
			"duration", elapsed,
		)
	}

	m.logger.InfoContext(ctx, "migrations completed",
		"applied", len(pending),
		"duration", time.Since(started),
	)
	return nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *manager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	return status.PendingMigrations, nil
}

// GetMigrationStatus compares the files with the version table.
func (m *manager) GetMigrationStatus(ctx context.Context) (*Status, error) {
	available, err := m.scanner.ScanMigrations(m.config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := m.validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedMap := make(map[int]AppliedMigration, len(applied))
	for _, item := range applied {
		number, _ := strconv.Atoi(item.Version)
		appliedMap[number] = item
	}

	var pending []Migration
	for _, migration := range available {
		number, _ := strconv.Atoi(migration.Version)
		record, done := appliedMap[number]
		if !done {
			pending = append(pending, migration)
			continue
		}
		if m.config.VerifyChecksum && record.Checksum != "" && record.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file has %s", ErrChecksumMismatch, record.Checksum, migration.Checksum))
		}
	}

	status := &Status{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence ensures there are no gaps in the available versions and
// that every applied version still has a file.
func (m *manager) validateSequence(available []Migration, applied []AppliedMigration) error {
	versions := make(map[int]bool, len(available))
	for _, migration := range available {
		number, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		versions[number] = true
	}

	if len(available) > 0 {
		first, _ := strconv.Atoi(available[0].Version)
		last, _ := strconv.Atoi(available[len(available)-1].Version)
		for version := first; version <= last; version++ {
			if !versions[version] {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, version)
			}
		}
	}

	for _, item := range applied {
		number, err := strconv.Atoi(item.Version)
		if err != nil {
			return NewDatabaseError(item.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, item.Version))
		}
		if !versions[number] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations",
				ErrVersionConflict, number)
		}
	}
	return nil
}

// RequireUpToDate returns ErrPendingMigrations when any migration is still pending.
func RequireUpToDate(ctx context.Context, m Manager) error {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	if status.PendingCount > 0 {
		return fmt.Errorf("%w: %d migrations not applied (current version %q)",
			ErrPendingMigrations, status.PendingCount, status.CurrentVersion)
	}
	return nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		vi, _ := strconv.Atoi(applied[i].Version)
		vj, _ := strconv.Atoi(applied[j].Version)
		return vi < vj
	})
}

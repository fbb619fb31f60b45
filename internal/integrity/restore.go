package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jobsieve/internal/fileutil"
	"jobsieve/internal/logging"
	"jobsieve/internal/services"
	"jobsieve/internal/store"
)

// Restore replaces the database at dbPath with the snapshot at backupPath.
// The store must be closed. The snapshot is verified before and after the
// copy; a damaged snapshot leaves the current database untouched. The
// replaced file is kept as dbPath.pre-restore.
func Restore(ctx context.Context, dbPath, backupPath string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "integrity")
	if _, err := os.Stat(backupPath); err != nil {
		return services.Wrap(services.ErrConfiguration, "integrity", "restore", "snapshot not found", err)
	}

	check, err := store.QuickCheckFile(ctx, backupPath)
	if err != nil {
		return err
	}
	if check.Status != store.CheckPassed {
		return services.Wrap(services.ErrIntegrity, "integrity", "restore",
			fmt.Sprintf("snapshot %s failed quick_check: %s", backupPath, check.Detail), nil)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if _, err := os.Stat(dbPath); err == nil {
		aside := dbPath + ".pre-restore"
		if _, err := fileutil.CopyVerified(dbPath, aside, 0o600); err != nil {
			return fmt.Errorf("keep current database aside: %w", err)
		}
		logger.Info("current database kept aside", logging.String("path", aside))
	}
	if err := fileutil.ReplaceVerified(backupPath, dbPath); err != nil {
		return fmt.Errorf("restore %s: %w", backupPath, err)
	}
	if err := fileutil.RemoveIfExists(store.Sidecars(dbPath)...); err != nil {
		return fmt.Errorf("remove stale sidecars: %w", err)
	}

	after, err := store.QuickCheckFile(ctx, dbPath)
	if err != nil {
		return err
	}
	if after.Status != store.CheckPassed {
		return services.Wrap(services.ErrIntegrity, "integrity", "restore", "restored database failed quick_check: "+after.Detail, nil)
	}
	logger.Info("database restored",
		logging.String("from", backupPath),
		logging.String("to", dbPath),
	)
	return nil
}

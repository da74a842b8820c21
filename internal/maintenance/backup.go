package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pageza/recipe-assistant/backend/config"
)

const (
	backupPrefix         = "recipe_system_backup_"
	backupGlob           = backupPrefix + "*.sql.gz"
	DefaultRetentionDays = 30
)

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// BackupConfig describes where backups go and how to reach the database
type BackupConfig struct {
	Dir           string
	RetentionDays int
	// ConnString, when set, is passed to the client tools as -d and replaces the fields below
	ConnString     string
	DBUser         string
	DBName         string
	DBHost         string
	DBPort         string
	DBPassword     string
	CommandTimeout time.Duration
}

// BackupConfigFromConfig maps application config. Backups always talk to Postgres directly.
func BackupConfigFromConfig(cfg *config.Config) BackupConfig {
	return BackupConfig{
		Dir:            cfg.BackupDir,
		RetentionDays:  cfg.BackupRetention,
		ConnString:     cfg.DatabaseURL,
		DBUser:         cfg.DBUser,
		DBName:         cfg.DBName,
		DBHost:         cfg.DBHost,
		DBPort:         cfg.DBPort,
		DBPassword:     cfg.DBPassword,
		CommandTimeout: cfg.CommandTimeout,
	}
}

// Uploader copies a finished backup off the host
type Uploader interface {
	UploadBackup(ctx context.Context, path string) (string, error)
}

// BackupFile is one archive in the backup directory
type BackupFile struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService takes, prunes and restores pg_dump archives
type BackupService struct {
	cfg      BackupConfig
	runner   CommandRunner
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackupService creates a backup service. uploader may be nil.
func NewBackupService(cfg BackupConfig, runner CommandRunner, uploader Uploader, logger *slog.Logger) *BackupService {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &BackupService{
		cfg:      cfg,
		runner:   runner,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// BackupFileName returns the uncompressed dump name for t
func BackupFileName(t time.Time) string {
	stamp := timestampReplacer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	return backupPrefix + stamp + ".sql"
}

// CreateBackup dumps the database, compresses the dump, prunes expired archives and
// returns the path of the new archive.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create backup directory %s", s.cfg.Dir)
	}

	plain := filepath.Join(s.cfg.Dir, BackupFileName(s.now()))
	compressed := plain + ".gz"

	s.logger.InfoContext(ctx, "starting database backup", "file", plain)

	dump := Command{
		Name: "pg_dump",
		Args: append(s.connArgs(), "-f", plain),
		Env:  s.env(),
	}
	if err := s.run(ctx, dump); err != nil {
		_ = os.Remove(plain)
		return "", errors.Wrap(err, "pg_dump failed")
	}

	if err := s.run(ctx, Command{Name: "gzip", Args: []string{plain}}); err != nil {
		return "", errors.Wrap(err, "gzip failed")
	}
	if _, err := os.Stat(plain); err == nil {
		_ = os.Remove(plain)
	}
	if _, err := os.Stat(compressed); err != nil {
		return "", errors.Wrapf(err, "compressed backup missing")
	}

	if _, err := s.CleanupOldBackups(ctx); err != nil {
		return "", err
	}

	if s.uploader != nil {
		key, err := s.uploader.UploadBackup(ctx, compressed)
		if err != nil {
			// The local archive is still good
			s.logger.ErrorContext(ctx, "backup upload failed", "file", compressed, "error", err)
		} else {
			s.logger.InfoContext(ctx, "backup uploaded", "key", key)
		}
	}

	s.logger.InfoContext(ctx, "database backup completed", "file", compressed)
	return compressed, nil
}

// CleanupOldBackups deletes archives older than the retention period and returns their paths
func (s *BackupService) CleanupOldBackups(ctx context.Context) ([]string, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
	var removed []string
	for _, b := range backups {
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
			return removed, errors.Wrapf(err, "remove expired backup %s", b.Path)
		}
		removed = append(removed, b.Path)
	}

	if len(removed) > 0 {
		s.logger.InfoContext(ctx, "expired backups removed", "count", len(removed), "retention_days", s.cfg.RetentionDays)
	}
	return removed, nil
}

// ListBackups returns the archives in the backup directory, newest first. Creation time is
// the file's modification time.
func (s *BackupService) ListBackups() ([]BackupFile, error) {
	matches, err := filepath.Glob(filepath.Join(s.cfg.Dir, backupGlob))
	if err != nil {
		return nil, errors.Wrap(err, "list backups")
	}

	backups := make([]BackupFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "stat backup %s", path)
		}
		backups = append(backups, BackupFile{Path: path, Size: info.Size(), CreatedAt: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore loads a backup into the database. Compressed archives are streamed through gunzip.
func (s *BackupService) Restore(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup file not found: %s", path)
		}
		return errors.Wrapf(err, "stat backup %s", path)
	}

	s.logger.InfoContext(ctx, "restoring database", "file", path)

	psql := Command{Name: "psql", Args: s.connArgs(), Env: s.env()}
	if strings.HasSuffix(path, ".gz") {
		if err := s.pipe(ctx, Command{Name: "gunzip", Args: []string{"-c", path}}, psql); err != nil {
			return errors.Wrap(err, "restore failed")
		}
	} else {
		psql.Args = append(psql.Args, "-f", path)
		if err := s.run(ctx, psql); err != nil {
			return errors.Wrap(err, "restore failed")
		}
	}

	s.logger.InfoContext(ctx, "database restored", "file", path)
	return nil
}

func (s *BackupService) connArgs() []string {
	if s.cfg.ConnString != "" {
		return []string{"-d", s.cfg.ConnString}
	}
	args := []string{"-U", s.cfg.DBUser, "-d", s.cfg.DBName}
	if s.cfg.DBHost != "" {
		args = append(args, "-h", s.cfg.DBHost)
	}
	if s.cfg.DBPort != "" {
		args = append(args, "-p", s.cfg.DBPort)
	}
	return args
}

func (s *BackupService) env() []string {
	if s.cfg.DBPassword == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + s.cfg.DBPassword}
}

func (s *BackupService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *BackupService) run(ctx context.Context, cmd Command) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	s.logger.DebugContext(ctx, "running command", "command", cmd.Name)
	return s.runner.Run(ctx, cmd)
}

func (s *BackupService) pipe(ctx context.Context, from, to Command) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	s.logger.DebugContext(ctx, "running pipeline", "from", from.Name, "to", to.Name)
	return s.runner.Pipe(ctx, from, to)
}

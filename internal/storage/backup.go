package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupExt          = ".db"
	encryptedBackupExt = ".db.enc"
	backupTimeFormat   = "20060102_150405.000"
)

// ErrPasswordRequired is returned when an encrypted backup is read without a
// password.
var ErrPasswordRequired = errors.New("backup is encrypted; password required")

// BackupManager creates, verifies and restores copies of the deck library.
type BackupManager struct {
	dbPath    string
	backupDir string
	now       func() time.Time
}

// NewBackupManager returns a manager for the database at dbPath. Backups go to
// backupDir, or to a "backups" directory next to the database when empty.
func NewBackupManager(dbPath, backupDir string) *BackupManager {
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(dbPath), "backups")
	}
	return &BackupManager{
		dbPath:    dbPath,
		backupDir: backupDir,
		now:       time.Now,
	}
}

// BackupOptions controls a single backup.
type BackupOptions struct {
	// Name is the file name without extension. Defaults to a timestamp.
	Name string

	// Password encrypts the backup when set.
	Password string
}

// BackupInfo describes a backup file.
type BackupInfo struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	Checksum  string // SHA-256 of the file as stored
	Encrypted bool
}

// Dir returns the directory backups are written to.
func (bm *BackupManager) Dir() string {
	return bm.backupDir
}

// Backup writes a consistent copy of the database with VACUUM INTO and
// verifies it. Encrypted backups are sealed after verification.
func (bm *BackupManager) Backup(ctx context.Context, opts BackupOptions) (string, error) {
	if _, err := os.Stat(bm.dbPath); err != nil {
		return "", fmt.Errorf("database not found: %w", err)
	}
	if err := os.MkdirAll(bm.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "library_" + bm.now().Format(backupTimeFormat)
	}

	plainPath := filepath.Join(bm.backupDir, name+backupExt)
	finalPath := plainPath
	if opts.Password != "" {
		finalPath = filepath.Join(bm.backupDir, name+encryptedBackupExt)
		plainPath = finalPath + ".tmp"
	}
	if _, err := os.Stat(finalPath); err == nil {
		return "", fmt.Errorf("backup already exists: %s", finalPath)
	}

	if err := vacuumInto(ctx, bm.dbPath, plainPath); err != nil {
		return "", err
	}

	if err := verifyLibrary(ctx, plainPath); err != nil {
		_ = os.Remove(plainPath)
		return "", fmt.Errorf("backup verification failed: %w", err)
	}

	if opts.Password == "" {
		return finalPath, nil
	}

	defer func() { _ = os.Remove(plainPath) }()
	if err := EncryptFile(plainPath, finalPath, DefaultEncryptionConfig(opts.Password)); err != nil {
		return "", err
	}
	return finalPath, nil
}

func vacuumInto(ctx context.Context, srcPath, destPath string) error {
	src, err := sql.Open("sqlite", srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("failed to copy database: %w", err)
	}
	return nil
}

// verifyLibrary checks that path is an intact SQLite file holding the deck
// tables.
func verifyLibrary(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}

	for _, table := range []string{"decks", "deck_cards"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return fmt.Errorf("backup has no %s table: %w", table, err)
		}
	}
	return nil
}

// VerifyBackup checks a backup file. password is required for encrypted
// backups and ignored otherwise.
func (bm *BackupManager) VerifyBackup(ctx context.Context, path, password string) error {
	plainPath, cleanup, err := bm.plaintext(path, password)
	if err != nil {
		return err
	}
	defer cleanup()
	return verifyLibrary(ctx, plainPath)
}

// plaintext returns a readable copy of the backup at path. Encrypted backups
// are decrypted into a temporary file removed by cleanup.
func (bm *BackupManager) plaintext(path, password string) (string, func(), error) {
	encrypted, err := IsEncrypted(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if !encrypted {
		return path, func() {}, nil
	}
	if password == "" {
		return "", nil, ErrPasswordRequired
	}

	tmp, err := os.CreateTemp(filepath.Dir(bm.dbPath), ".restore-*.db")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := DecryptFile(path, tmpPath, DefaultEncryptionConfig(password)); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmpPath, cleanup, nil
}

// Restore replaces the database with the backup at path. The current
// database, with its WAL files, is kept alongside with an ".old.<time>"
// suffix. Callers must close every connection to the database first.
func (bm *BackupManager) Restore(ctx context.Context, path, password string) error {
	plainPath, cleanup, err := bm.plaintext(path, password)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := verifyLibrary(ctx, plainPath); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	tempPath := bm.dbPath + ".restore.tmp"
	if err := copyFile(plainPath, tempPath); err != nil {
		return err
	}

	if _, err := os.Stat(bm.dbPath); err == nil {
		suffix := ".old." + bm.now().Format("20060102_150405")
		for _, ext := range []string{"", "-wal", "-shm"} {
			current := bm.dbPath + ext
			if _, err := os.Stat(current); err != nil {
				continue
			}
			if err := os.Rename(current, bm.dbPath+suffix+ext); err != nil {
				_ = os.Remove(tempPath)
				return fmt.Errorf("failed to move current database aside: %w", err)
			}
		}
	}

	if err := os.Rename(tempPath, bm.dbPath); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// ListBackups returns the backups in the backup directory, newest first.
func (bm *BackupManager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		name := entry.Name()
		encrypted := strings.HasSuffix(name, encryptedBackupExt)
		if entry.IsDir() || (!encrypted && !strings.HasSuffix(name, backupExt)) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(bm.backupDir, name)
		checksum, err := calculateChecksum(path)
		if err != nil {
			checksum = "unknown"
		}

		backups = append(backups, BackupInfo{
			Path:      path,
			Name:      name,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Checksum:  checksum,
			Encrypted: encrypted,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// Prune deletes all but the newest keep backups and returns the removed
// paths. keep <= 0 keeps everything.
func (bm *BackupManager) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	backups, err := bm.ListBackups()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.Name, err)
		}
		removed = append(removed, b.Path)
	}
	return removed, nil
}

func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/config"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
)

var (
	backupName    string
	backupEncrypt bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up and restore the deck library",
	Long: `Backups are consistent SQLite copies written to backup.dir (default: a
backups directory next to the database). Encrypted backups use the password in
` + config.BackupPasswordEnv + `.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a new backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if backupEncrypt {
			cfg.Backup.Encrypt = true
		}
		password, err := cfg.BackupPassword()
		if err != nil {
			return err
		}

		bm, err := newBackupManager()
		if err != nil {
			return err
		}
		path, err := bm.Backup(cmd.Context(), storage.BackupOptions{Name: backupName, Password: password})
		if err != nil {
			return err
		}

		logger.Info("Backup written", zap.String("path", path), zap.Bool("encrypted", password != ""))
		cmd.Println(path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bm, err := newBackupManager()
		if err != nil {
			return err
		}
		backups, err := bm.ListBackups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			cmd.Printf("no backups in %s\n", bm.Dir())
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tENCRYPTED\tSHA256")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%.12s\n",
				b.Name, b.Size, b.ModTime.Format("2006-01-02 15:04:05"), b.Encrypted, b.Checksum)
		}
		return tw.Flush()
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Check that a backup is an intact deck library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bm, err := newBackupManager()
		if err != nil {
			return err
		}
		if err := bm.VerifyBackup(cmd.Context(), args[0], os.Getenv(config.BackupPasswordEnv)); err != nil {
			return err
		}
		cmd.Printf("%s: ok\n", args[0])
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the deck library with a backup",
	Long: `Replaces the deck library with the given backup. The current database is
kept next to it with an .old.<timestamp> suffix. Stop any running server first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bm, err := newBackupManager()
		if err != nil {
			return err
		}
		if err := bm.Restore(cmd.Context(), args[0], os.Getenv(config.BackupPasswordEnv)); err != nil {
			return err
		}
		logger.Info("Deck library restored", zap.String("from", args[0]))
		cmd.Printf("restored %s\n", args[0])
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVar(&backupName, "name", "", "backup file name without extension (default: timestamp)")
	backupCreateCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "encrypt with the password in "+config.BackupPasswordEnv)

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupVerifyCmd, backupRestoreCmd)
}

func newBackupManager() (*storage.BackupManager, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	return storage.NewBackupManager(path, cfg.Backup.Dir), nil
}

// newBackupScheduler returns nil when scheduled backups are disabled.
func newBackupScheduler() (*storage.BackupScheduler, error) {
	interval, err := cfg.GetBackupInterval()
	if err != nil || interval == 0 {
		return nil, err
	}
	password, err := cfg.BackupPassword()
	if err != nil {
		return nil, err
	}
	bm, err := newBackupManager()
	if err != nil {
		return nil, err
	}
	return storage.NewBackupScheduler(bm, storage.SchedulerConfig{
		Interval: interval,
		Keep:     cfg.Backup.Keep,
		Password: password,
	}, logger.Named("backup"))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/assistant"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

var (
	configPath string
	ledgerApp  *app.App
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Operate the voice ledger from a terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log := app.NewLogger(cfg.Log)
		ctx := logger.WithContext(cmd.Context(), log)
		cmd.SetContext(ctx)

		ledgerApp, err = app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		return ledgerApp.StartJobs(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LEDGER_CONFIG"), "Path to TOML config")

	rootCmd.AddCommand(sayCmd, voiceCmd, searchCmd, findCmd, historyCmd, reportCmd, backupCmd, restoreCmd, resetCmd, shellCmd)

	voiceCmd.Flags().String("mime", "", "Audio MIME type (default audio/ogg)")
	resetCmd.Flags().Bool("yes", false, "Confirm clearing every ledger row")
	backupCmd.Flags().Duration("wait", 2*time.Minute, "How long to wait for the cloud upload")
}

func operatorID() int64 { return ledgerApp.Config.Operator.ID }

func printReply(cmd *cobra.Command, reply assistant.Reply, err error) error {
	if reply.Text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	}
	return err
}

var sayCmd = &cobra.Command{
	Use:   "say TEXT...",
	Short: "Handle one utterance as if it were typed to the bot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.HandleText(cmd.Context(), operatorID(), strings.Join(args, " "))
		if reply.Kind == assistant.KindConfirm {
			fmt.Fprintln(cmd.ErrOrStderr(), "Низкая уверенность: используйте 'ledgerctl shell', чтобы подтвердить.")
		}
		return printReply(cmd, reply, err)
	},
}

var voiceCmd = &cobra.Command{
	Use:   "voice FILE",
	Short: "Transcribe a voice message and handle it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		mime, _ := cmd.Flags().GetString("mime")
		reply, err := ledgerApp.Service.HandleVoice(cmd.Context(), operatorID(), audio, mime)
		return printReply(cmd, reply, err)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search the ledger, e.g. 'такси >1000 месяц'",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.Search(cmd.Context(), operatorID(), strings.Join(args, " "))
		return printReply(cmd, reply, err)
	},
}

var findCmd = &cobra.Command{
	Use:   "find TERM",
	Short: "List rows containing TERM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.Find(cmd.Context(), operatorID(), strings.Join(args, " "))
		return printReply(cmd, reply, err)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the last ledger rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.History(cmd.Context(), operatorID())
		return printReply(cmd, reply, err)
	},
}

var reportCommands = []domain.Command{
	domain.CommandAnalytics,
	domain.CommandCategories,
	domain.CommandRecipients,
	domain.CommandSuppliers,
}

var reportCmd = &cobra.Command{
	Use:       "report analytics|categories|recipients|suppliers [TEXT...]",
	Short:     "Render an analytics report",
	Long:      "Render a report. TEXT carries parameters the way they are spoken, e.g. 'за неделю' or 'поставщика Интигам'.",
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"analytics", "categories", "recipients", "suppliers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range reportCommands {
			if string(c) == args[0] {
				reply, err := ledgerApp.Service.Report(cmd.Context(), operatorID(), c, strings.Join(args[1:], " "))
				return printReply(cmd, reply, err)
			}
		}
		return fmt.Errorf("unknown report %q", args[0])
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a JSON backup and upload it when a bucket is configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.Backup(cmd.Context(), operatorID())
		if err := printReply(cmd, reply, err); err != nil {
			return err
		}
		if reply.Backup == nil || reply.Backup.JobID == "" {
			return nil
		}
		wait, _ := cmd.Flags().GetDuration("wait")
		job, err := waitForJob(cmd.Context(), reply.Backup.JobID, wait)
		if err != nil {
			return err
		}
		if job.Status == jobs.JobStatusFailed {
			return fmt.Errorf("upload failed: %s", job.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "☁️ %s\n", job.Location)
		return nil
	},
}

func waitForJob(ctx context.Context, jobID string, wait time.Duration) (*jobs.UploadBackupJob, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := ledgerApp.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("upload still %s: %w", job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

var restoreCmd = &cobra.Command{
	Use:   "restore FILE|gs://BUCKET/OBJECT",
	Short: "Load a backup into an empty ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ledgerApp.Service.Restore(cmd.Context(), operatorID(), args[0])
		return printReply(cmd, reply, err)
	},
}

var errNotConfirmed = errors.New("refusing to reset without --yes")

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every ledger row, keeping the header",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errNotConfirmed
		}
		reply, err := ledgerApp.Service.Reset(cmd.Context(), operatorID())
		return printReply(cmd, reply, err)
	},
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if ledgerApp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerApp.Config.Server.ShutdownTimeout)
		if serr := ledgerApp.Shutdown(ctx); serr != nil {
			fmt.Fprintln(os.Stderr, "Shutdown:", serr)
		}
		cancel()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command mixdesk is a terminal client for the audio analysis backend.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jwulff/mixdesk/internal/app"
	"github.com/jwulff/mixdesk/internal/audio"
	"github.com/jwulff/mixdesk/internal/backend"
	"github.com/jwulff/mixdesk/internal/config"
	"github.com/jwulff/mixdesk/internal/db"
	"github.com/jwulff/mixdesk/internal/logging"
	"github.com/jwulff/mixdesk/internal/mcpserver"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
)

var Version = "dev"

var flags struct {
	configPath string
	backendURL string
	archive    string
	limit      int
}

var rootCmd = &cobra.Command{
	Use:   "mixdesk [audio-file]",
	Short: "Ask an audio model about a region of your mix",
	Long: `mixdesk loads an audio file, lets you pick a region on its waveform and
sends that region to the analysis backend together with a prompt. Follow-up
questions continue the same conversation.`,
	Version:      Version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runTUI,
}

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "List archived conversations, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the conversation archive over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultPath(),
		"Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.archive, "archive", "",
		"Conversation archive path (overrides config)")
	rootCmd.Flags().StringVarP(&flags.backendURL, "backend", "b", "",
		"Backend base URL (overrides config)")
	historyCmd.Flags().IntVarP(&flags.limit, "limit", "n", 20,
		"Number of conversations to list")

	rootCmd.AddCommand(historyCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.backendURL != "" {
		cfg.BackendURL = flags.backendURL
	}
	if flags.archive != "" {
		cfg.ArchivePath = flags.archive
	}
	return cfg, config.Validate(cfg)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, closer, err := logging.Setup(cfg.LogFile, string(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := backend.New(cfg.BackendURL, backend.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}

	opts := app.Options{
		Backend: client,
		Player:  audio.NewPlayer(cfg.FFplayPath),
		Load: func(ctx context.Context, path string) (audio.Source, error) {
			return audio.Load(ctx, path, audio.LoadOptions{FFmpegPath: cfg.FFmpegPath})
		},
		Config:    cfg.Model.Session(),
		Prompt:    cfg.StartPrompt(),
		ExportDir: cfg.ExportDir,
		Logger:    log,
	}
	if len(args) == 1 {
		opts.InitialFile = args[0]
	}

	if cfg.ArchivePath != "" {
		store, err := db.Open(cfg.ArchivePath)
		if err != nil {
			log.Warn("archive disabled", "path", cfg.ArchivePath, "err", err)
		} else {
			defer store.Close()
			opts.Archive = store
		}
	}

	log.Info("starting", "version", Version, "backend", client.BaseURL())
	p := tea.NewProgram(app.New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func openArchive() (*db.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.ArchivePath == "" {
		return nil, fmt.Errorf("no archive configured")
	}
	return db.OpenReadOnly(cfg.ArchivePath)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		conv, err := store.Conversation(args[0])
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("conversation %q not found", args[0])
		}
		turns, err := store.TurnsForConversation(conv.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s [%.1fs-%.1fs]  %s temp %.1f\n\n",
			conv.CreatedAt.Local().Format("2006-01-02 15:04"), conv.AudioPath,
			conv.StartSec, conv.EndSec, conv.ModelID, conv.Temperature)
		for _, t := range turns {
			fmt.Fprintf(out, "[%s]\n%s\n\n", t.Role, t.Text)
		}
		return nil
	}

	convs, err := store.ListConversations(flags.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tAUDIO\tREGION\tMODEL\tTURNS")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f-%.1f\t%s\t%d\n",
			c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.AudioPath,
			c.StartSec, c.EndSec, c.ModelID, c.TurnCount)
	}
	return tw.Flush()
}

func runMCP(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()
	return mcpserver.Serve(store, Version)
}

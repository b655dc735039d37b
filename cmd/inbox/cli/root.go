// Package cli is the terminal inbox of the console: operators log in, pick
// an agent and take over its WhatsApp conversations.
package cli

import (
	"AgentDesk/internal/config"
	"AgentDesk/internal/inbox"
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	configPath string
	baseURL    string
	username   string
	password   string
	verbose    bool
	pollSec    int
	daysBack   int
}

var opts options

var rootCmd = &cobra.Command{
	Use:          "inbox",
	Short:        "AgentDesk operator inbox",
	Long:         `inbox connects to an AgentDesk backend and lets an operator follow and take over agent conversations.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return opts.resolve()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file with an inbox section")
	flags.StringVar(&opts.baseURL, "url", "", "backend base url")
	flags.StringVarP(&opts.username, "user", "u", "", "operator username")
	flags.StringVar(&opts.password, "password", "", "operator password (or INBOX_PASSWORD)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
}

// resolve fills options left empty on the command line from the config file
// and the environment.
func (o *options) resolve() error {
	o.pollSec = int(inbox.DefaultInterval / time.Second)
	o.daysBack = 7
	if o.configPath != "" {
		conf, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		if o.baseURL == "" {
			o.baseURL = conf.Inbox.BaseURL
		}
		if conf.Inbox.PollSec > 0 {
			o.pollSec = conf.Inbox.PollSec
		}
		if conf.Inbox.DaysBack > 0 {
			o.daysBack = conf.Inbox.DaysBack
		}
	}
	if o.baseURL == "" {
		o.baseURL = envOr("INBOX_BASE_URL", "http://127.0.0.1:9100")
	}
	if o.username == "" {
		o.username = os.Getenv("INBOX_USER")
	}
	if o.password == "" {
		o.password = os.Getenv("INBOX_PASSWORD")
	}
	return nil
}

func (o *options) logger() *slog.Logger {
	if o.verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// connect opens an authenticated backend client, prompting for missing
// credentials.
func (o *options) connect(ctx context.Context, in *bufio.Reader, out io.Writer, log *slog.Logger) (*inbox.HTTPClient, error) {
	if o.username == "" {
		name, err := readLine(in, out, "Username: ")
		if err != nil {
			return nil, err
		}
		o.username = name
	}
	if o.password == "" {
		pass, err := readPassword(in, out, "Password: ")
		if err != nil {
			return nil, err
		}
		o.password = pass
	}

	client := inbox.NewHTTPClient(o.baseURL, 30*time.Second, log)
	if _, err := client.Login(ctx, o.username, o.password); err != nil {
		return nil, fmt.Errorf("login to %s: %w", o.baseURL, err)
	}
	return client, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

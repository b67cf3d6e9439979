// Command imapdump is a small diagnostic client for poking IMAP servers
// with the engine: list folders, dump message headers, watch IDLE pushes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/client"
	"github.com/driftmail/go-imapcore/stream"
)

type config struct {
	Host      string        `env:"IMAP_HOST,required"`
	Port      int           `env:"IMAP_PORT,default=0"`
	User      string        `env:"IMAP_USER"`
	Password  string        `env:"IMAP_PASSWORD"`
	Transport string        `env:"IMAP_TRANSPORT,default=tls"`
	Timeout   time.Duration `env:"IMAP_TIMEOUT,default=30s"`
}

var (
	log     *zap.Logger
	verbose bool

	folderName = color.New(color.FgCyan, color.Bold)
	headerKey  = color.New(color.FgYellow)
)

func connect(ctx context.Context) (*client.Conn, error) {
	// .env is a convenience for local runs; absence is fine
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}

	opts := &client.Options{
		Transport: stream.Transport(cfg.Transport),
		Timeout:   cfg.Timeout,
	}
	if verbose {
		opts.Debug = os.Stderr
	}

	log.Info("connecting",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("transport", cfg.Transport))

	c, err := client.Connect(cfg.Host, cfg.Port, opts)
	if err != nil {
		return nil, err
	}
	if cfg.User != "" {
		if err := c.Login(cfg.User, cfg.Password); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:           "imapdump",
	Short:         "Dump folders and messages from an IMAP server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Logout()

		folders, err := c.List("", "*")
		if err != nil {
			return err
		}
		names := make([]string, 0, len(folders))
		for name := range folders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			info := folders[name]
			folderName.Print(name)
			fmt.Printf("  %v\n", info.Flags)
		}
		return nil
	},
}

var headersCmd = &cobra.Command{
	Use:   "headers <folder> <uid-set>",
	Short: "Dump raw headers of the given UIDs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Examine(args[0]); err != nil {
			return err
		}
		var set imapcore.SeqSet
		var from, to uint32
		if n, _ := fmt.Sscanf(args[1], "%d:%d", &from, &to); n == 2 {
			set = imapcore.SeqSetRange(from, to)
		} else if n, _ := fmt.Sscanf(args[1], "%d", &from); n == 1 {
			set = imapcore.SeqSetNum(from)
		} else {
			set = imapcore.SeqSetRange(1, imapcore.Star)
		}

		headers, err := c.Headers(set, imapcore.ModeUID)
		if err != nil {
			return err
		}
		for uid, hdr := range headers {
			headerKey.Printf("== UID %d ==\n", uid)
			fmt.Println(hdr)
		}
		log.Info("fetched headers", zap.Int("count", len(headers)))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "IDLE on a folder and print pushed notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(args[0]); err != nil {
			return err
		}
		if err := c.Idle(); err != nil {
			return err
		}
		log.Info("idling", zap.String("folder", args[0]))
		for {
			frame, err := c.NextNotification()
			if err != nil {
				var cerr *imapcore.ConnectionError
				if errors.As(err, &cerr) && cerr.Kind == imapcore.ConnTimedOut {
					continue
				}
				return err
			}
			fmt.Println(frame.String())
		}
	},
}

func main() {
	var err error
	log, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "dump raw protocol traffic to stderr")
	rootCmd.AddCommand(listCmd, headersCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

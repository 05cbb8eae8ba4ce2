// Package commands implements chatctl, an operator CLI over the chat core.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/app"
	"github.com/zhouzirui/penpal/backend/internal/config"
	"github.com/zhouzirui/penpal/backend/pkg/logger"
)

var (
	envFile string
	verbose bool
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Operate the penpal chat backend directly",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env") {
				log.Printf("warning: failed to load %s: %v", envFile, err)
			}
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log dependency activity to stderr")

	root.AddCommand(encryptCmd(), decryptCmd(), createCmd(), chatsCmd(), messagesCmd(), sendCmd(), deleteCmd())
	return root
}

// withApp loads the configuration, runs fn against a connected backend and
// closes it again. Operator reads never mark a chat read.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Chat.MarkReadOnFetch = false

	zl := zap.NewNop()
	if verbose {
		if zl, err = logger.New(logger.Config{Level: "debug", Development: true}); err != nil {
			return err
		}
	}

	a, err := app.New(cmd.Context(), cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

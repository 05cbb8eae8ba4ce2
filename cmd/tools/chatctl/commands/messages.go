package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/penpal/backend/internal/app"
)

// messages <chatID> --as <uid>: read a chat the way uid would see it.
func messagesCmd() *cobra.Command {
	var as, pageToken string
	var pageSize int
	cmd := &cobra.Command{
		Use:   "messages <chatID>",
		Short: "Show the messages a participant can currently see",
		Long: "Show the messages a participant can currently see.\n\n" +
			"The read status of the chat is left untouched, so inspecting a chat\n" +
			"as its recipient does not mark the last message read.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				page, err := a.Chat.FetchMessages(cmd.Context(), args[0], as, pageSize, pageToken)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "uid of the reader")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "messages per page (default from config)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "token from a previous page")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

// send <chatID> <text> --as <uid>: send a message on behalf of uid.
func sendCmd() *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "send <chatID> <text>",
		Short: "Send a message as a participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				msg, chatType, err := a.Chat.SendMessage(cmd.Context(), args[0], as, args[1])
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), msg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "sent to %s chat %s\n", chatType, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "uid of the sender")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

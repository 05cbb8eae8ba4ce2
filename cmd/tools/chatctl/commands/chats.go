package commands

import (
	"github.com/spf13/cobra"

	"github.com/zhouzirui/penpal/backend/internal/app"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
)

// create <uid> <uid>: create or look up the chat between two users.
func createCmd() *cobra.Command {
	var chatType string
	cmd := &cobra.Command{
		Use:   "create <uid> <uid>",
		Short: "Create or look up the chat between two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				participants := []chat.Participant{{UID: args[0]}, {UID: args[1]}}
				c, created, err := a.Chat.CreateOrGetChat(cmd.Context(), participants, chat.Type(chatType))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"created": created, "chat": c})
			})
		},
	}
	cmd.Flags().StringVar(&chatType, "type", string(chat.TypePenpal), "penpal or onetime")
	return cmd
}

// chats <uid>: list a user's chats, most recent first.
func chatsCmd() *cobra.Command {
	var pageSize int
	var pageToken string
	cmd := &cobra.Command{
		Use:   "chats <uid>",
		Short: "List a user's chats by latest activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				page, err := a.Chat.FetchLatestChats(cmd.Context(), args[0], pageSize, pageToken)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "chats per page (default from config)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "token from a previous page")
	return cmd
}

// delete <chatID>: remove a chat and all of its messages.
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chatID>",
		Short: "Delete a chat and all of its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				if err := a.Chat.DeleteChat(cmd.Context(), args[0]); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": args[0]})
			})
		},
	}
}

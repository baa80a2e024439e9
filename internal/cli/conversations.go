package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/domain"
)

var (
	groupName    string
	groupMembers []string
	favouriteOff bool
)

func init() {
	groupCreateCmd.Flags().StringVar(&groupName, "name", "", "group name")
	groupCreateCmd.Flags().StringSliceVar(&groupMembers, "member", nil, "member user id (repeatable)")
	groupCreateCmd.MarkFlagRequired("name")
	groupCreateCmd.MarkFlagRequired("member")
	groupCmd.AddCommand(groupCreateCmd)

	favouriteCmd.Flags().BoolVar(&favouriteOff, "off", false, "remove the favourite flag")

	rootCmd.AddCommand(dmCmd, groupCmd, favouriteCmd)
}

var dmCmd = &cobra.Command{
	Use:   "dm <user-id>",
	Short: "Open or create the direct conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		other, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		c, _, err := authedClient()
		if err != nil {
			return err
		}
		conv, err := c.Conversations().Direct(cmd.Context(), other)
		if err != nil {
			return err
		}
		printConversation(cmd.OutOrStdout(), conv)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage group conversations",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a group conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		members := make([]uuid.UUID, 0, len(groupMembers))
		for _, raw := range groupMembers {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid member id %q", raw)
			}
			members = append(members, id)
		}
		c, _, err := authedClient()
		if err != nil {
			return err
		}
		conv, err := c.Conversations().CreateGroup(cmd.Context(), groupName, members)
		if err != nil {
			return err
		}
		printConversation(cmd.OutOrStdout(), conv)
		return nil
	},
}

var favouriteCmd = &cobra.Command{
	Use:   "favourite <conversation-id>",
	Short: "Mark a conversation as favourite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id %q", args[0])
		}
		c, _, err := authedClient()
		if err != nil {
			return err
		}
		conv, err := c.Conversations().SetFavourite(cmd.Context(), id, !favouriteOff)
		if err != nil {
			return err
		}
		printConversation(cmd.OutOrStdout(), conv)
		return nil
	},
}

func printConversation(w io.Writer, conv *domain.Conversation) {
	star := ""
	if conv.Favourite {
		star = " ★"
	}
	fmt.Fprintf(w, "%s  %s (%s, %d members)%s\n", conv.ID, conv.DisplayName(), conv.Kind, len(conv.Members), star)
}

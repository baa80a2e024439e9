package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/syncengine"
)

const firstSyncTimeout = 15 * time.Second

var errNoResponse = errors.New("timed out waiting for the server")

var (
	chatsTab   string
	chatsWatch bool
)

func init() {
	chatsCmd.Flags().StringVar(&chatsTab, "tab", "all", "all, unread, favourites, groups or direct")
	chatsCmd.Flags().BoolVarP(&chatsWatch, "watch", "w", false, "keep polling and redraw on every change")
	rootCmd.AddCommand(chatsCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List conversations with previews and unread counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := syncengine.ParseTab(chatsTab)
		if err != nil {
			return err
		}
		c, s, err := authedClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		e := newEngine(c, s)
		e.Start(ctx)
		defer e.Stop()

		if err := waitForChange(ctx, e, firstSyncTimeout); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		draw := func() {
			if chatsWatch {
				clearScreen(out)
			}
			renderChatList(out, e.ChatList(tab), tab, time.Now())
			if chatsWatch {
				fmt.Fprintf(out, "\n%d unread · Ctrl-C to quit\n", e.TotalUnread())
			}
		}
		draw()
		if !chatsWatch {
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-e.Changes():
				draw()
			}
		}
	},
}

func waitForChange(ctx context.Context, e *syncengine.Engine, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.Changes():
		return nil
	case <-t.C:
		return errNoResponse
	}
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

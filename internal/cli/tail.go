package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/client"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/syncengine"
)

func init() {
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail <conversation-id>",
	Short: "Open a conversation, follow new messages and send lines from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, s, err := authedClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		conv, err := findConversation(ctx, c, args[0])
		if err != nil {
			return err
		}

		e := newEngine(c, s)
		e.Start(ctx)
		e.Open(ctx, *conv)
		defer e.Stop()

		names := memberNames(conv, s)
		out := cmd.OutOrStdout()
		draw := func() {
			clearScreen(out)
			renderMessages(out, *conv, e.Messages(conv.ID), s.UserID, names, time.Now())
			fmt.Fprintln(out, "\nType a message and press Enter. /quit to leave.")
		}

		lines := make(chan string)
		go readLines(ctx, lines)

		draw()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-e.Changes():
				draw()
			case line, ok := <-lines:
				if !ok || line == "/quit" {
					return nil
				}
				if strings.TrimSpace(line) == "" {
					continue
				}
				go func() {
					if _, err := e.Send(ctx, conv.ID, syncengine.OutgoingMessage{Content: line}); err != nil && !errors.Is(err, context.Canceled) {
						fmt.Fprintf(cmd.ErrOrStderr(), "send failed: %v\n", err)
					}
				}()
			}
		}
	},
}

func readLines(ctx context.Context, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// findConversation resolves an id among the user's conversations.
func findConversation(ctx context.Context, c *client.Client, raw string) (*domain.Conversation, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q", raw)
	}
	convs, err := c.Conversations().List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].ID == id {
			return &convs[i], nil
		}
	}
	return nil, fmt.Errorf("conversation %s not found", id)
}

func memberNames(conv *domain.Conversation, s *session) map[uuid.UUID]string {
	names := map[uuid.UUID]string{s.UserID: s.Username}
	if p := conv.Counterpart; p != nil {
		names[p.ID] = p.DisplayName
		if names[p.ID] == "" {
			names[p.ID] = p.Username
		}
	}
	return names
}

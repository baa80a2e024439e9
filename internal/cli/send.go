package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/syncengine"
)

var (
	sendText     string
	sendFile     string
	sendKind     string
	sendLocation string
	sendContact  string
)

func init() {
	sendCmd.Flags().StringVarP(&sendText, "text", "t", "", "message text, or a caption for --file")
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "attachment to upload")
	sendCmd.Flags().StringVar(&sendKind, "kind", "", "attachment kind: image, video, audio or document (guessed when empty)")
	sendCmd.Flags().StringVar(&sendLocation, "location", "", "lat,lng[,address]")
	sendCmd.Flags().StringVar(&sendContact, "contact", "", "name,phone,email")
	sendCmd.MarkFlagsMutuallyExclusive("file", "location", "contact")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id>",
	Short: "Send one message and wait until it is confirmed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, size, closeFile, err := buildOutgoing()
		if err != nil {
			return err
		}
		defer closeFile()

		c, s, err := authedClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		conv, err := findConversation(ctx, c, args[0])
		if err != nil {
			return err
		}

		e := newEngine(c, s)
		e.Open(ctx, *conv)
		defer e.Stop()

		id, err := e.Send(ctx, conv.ID, out)
		if err != nil {
			return err
		}

		timeout := cfg.Sync.PendingTimeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		for {
			st, _ := e.SendStatus(id)
			switch st.State {
			case syncengine.SendConfirmed:
				fmt.Fprintln(cmd.OutOrStdout(), formatStatus(st, size))
				return nil
			case syncengine.SendFailed:
				return errors.New(formatStatus(st, size))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline.C:
				return fmt.Errorf("%s: still pending", id)
			case <-e.Changes():
			}
		}
	},
}

func buildOutgoing() (syncengine.OutgoingMessage, int64, func(), error) {
	noop := func() {}
	switch {
	case sendFile != "":
		f, err := os.Open(sendFile)
		if err != nil {
			return syncengine.OutgoingMessage{}, 0, noop, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return syncengine.OutgoingMessage{}, 0, noop, err
		}
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(sendFile)))
		kind, err := attachmentKind(sendKind, contentType)
		if err != nil {
			f.Close()
			return syncengine.OutgoingMessage{}, 0, noop, err
		}
		att := &domain.Attachment{
			Name:        filepath.Base(sendFile),
			ContentType: contentType,
			Size:        info.Size(),
			Kind:        kind,
			Body:        f,
		}
		return syncengine.OutgoingMessage{Kind: kind, Content: sendText, Attachment: att}, info.Size(), func() { f.Close() }, nil

	case sendLocation != "":
		loc, err := parseLocationFlag(sendLocation)
		if err != nil {
			return syncengine.OutgoingMessage{}, 0, noop, err
		}
		return syncengine.OutgoingMessage{Kind: domain.KindLocation, Content: loc.Encode()}, 0, noop, nil

	case sendContact != "":
		contact := parseContactFlag(sendContact)
		return syncengine.OutgoingMessage{Kind: domain.KindContact, Content: contact.Encode()}, 0, noop, nil
	}

	if strings.TrimSpace(sendText) == "" {
		return syncengine.OutgoingMessage{}, 0, noop, errors.New("nothing to send: pass --text, --file, --location or --contact")
	}
	return syncengine.OutgoingMessage{Kind: domain.KindText, Content: sendText}, 0, noop, nil
}

// attachmentKind picks the kind from the flag, or from the content type.
func attachmentKind(flag, contentType string) (domain.Kind, error) {
	if flag != "" {
		k, err := domain.ParseKind(flag)
		if err != nil {
			return "", err
		}
		if !k.IsAttachment() {
			return "", fmt.Errorf("kind %s does not take a file", k)
		}
		return k, nil
	}
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return domain.KindImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return domain.KindVideo, nil
	case strings.HasPrefix(contentType, "audio/"):
		return domain.KindAudio, nil
	}
	return domain.KindDocument, nil
}

func parseLocationFlag(raw string) (*domain.LocationPayload, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("location must be lat,lng[,address], got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("invalid longitude %q", parts[1])
	}
	loc := &domain.LocationPayload{Latitude: lat, Longitude: lng}
	if len(parts) == 3 {
		loc.Address = strings.TrimSpace(parts[2])
	}
	return loc, nil
}

func parseContactFlag(raw string) *domain.ContactPayload {
	parts := strings.SplitN(raw, ",", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return &domain.ContactPayload{
		Name:  strings.TrimSpace(parts[0]),
		Phone: strings.TrimSpace(parts[1]),
		Email: strings.TrimSpace(parts[2]),
	}
}

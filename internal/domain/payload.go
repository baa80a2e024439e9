package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedPayload = errors.New("malformed structured payload")

const (
	locationFallback = "Location"
	contactFallback  = "Contact"
	NoMessagesYet    = "No messages yet"
)

type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type ContactPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func ParseLocation(content string) (*LocationPayload, error) {
	var raw struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Address   string   `json:"address"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return nil, fmt.Errorf("%w: missing coordinates", ErrMalformedPayload)
	}
	return &LocationPayload{Latitude: *raw.Latitude, Longitude: *raw.Longitude, Address: raw.Address}, nil
}

func ParseContact(content string) (*ContactPayload, error) {
	var c ContactPayload
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.Name == "" && c.Phone == "" && c.Email == "" {
		return nil, fmt.Errorf("%w: empty contact", ErrMalformedPayload)
	}
	return &c, nil
}

func (l *LocationPayload) Encode() string {
	b, _ := json.Marshal(l)
	return string(b)
}

func (c *ContactPayload) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// MapsURL links to the location on a map.
func (l *LocationPayload) MapsURL() string {
	return "https://maps.google.com/?q=" + strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// DescribeLocation renders location content for display. Malformed content
// renders as a placeholder.
func DescribeLocation(content string) string {
	loc, err := ParseLocation(content)
	if err != nil {
		return locationFallback
	}
	if loc.Address != "" {
		return loc.Address
	}
	return fmt.Sprintf("%.5f, %.5f", loc.Latitude, loc.Longitude)
}

// DescribeContact renders contact content for display. Malformed content
// renders as a placeholder.
func DescribeContact(content string) string {
	c, err := ParseContact(content)
	if err != nil {
		return contactFallback
	}
	var parts []string
	for _, p := range []string{c.Name, c.Phone, c.Email} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}

// Describe renders a message body as text.
func Describe(m *Message) string {
	switch m.Kind {
	case KindLocation:
		return DescribeLocation(m.Content)
	case KindContact:
		return DescribeContact(m.Content)
	case KindText:
		return m.Content
	}
	if m.AttachmentURL != "" {
		return m.AttachmentURL
	}
	return m.Content
}

// Preview is the one-line label shown in the chat list for the last message.
func Preview(m *Message) string {
	if m == nil {
		return NoMessagesYet
	}
	switch m.Kind {
	case KindImage:
		return "📷 Photo"
	case KindVideo:
		return "🎥 Video"
	case KindAudio:
		return "🎤 Audio"
	case KindDocument:
		return "📄 Document"
	case KindLocation:
		return "📍 Location"
	case KindContact:
		return "👤 Contact"
	}
	return m.Content
}

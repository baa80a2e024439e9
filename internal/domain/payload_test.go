package domain

import (
	"errors"
	"testing"
)

func TestDescribeLocation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"coordinates", `{"latitude":45.815399,"longitude":15.966568}`, "45.81540, 15.96657"},
		{"address wins", `{"latitude":1,"longitude":2,"address":"Ilica 1, Zagreb"}`, "Ilica 1, Zagreb"},
		{"malformed", `{"latitude":`, "Location"},
		{"missing coords", `{"address":"nowhere"}`, "Location"},
		{"empty", ``, "Location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeLocation(tt.content); got != tt.want {
				t.Errorf("DescribeLocation(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDescribeContact(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"full", `{"name":"Ana","phone":"+385 1 234","email":"ana@example.com"}`, "Ana • +385 1 234 • ana@example.com"},
		{"name only", `{"name":"Ana"}`, "Ana"},
		{"not json", `Ana, 555`, "Contact"},
		{"empty object", `{}`, "Contact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeContact(tt.content); got != tt.want {
				t.Errorf("DescribeContact(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestParseLocationMalformed(t *testing.T) {
	_, err := ParseLocation("nope")
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		msg  *Message
		want string
	}{
		{nil, NoMessagesYet},
		{&Message{Kind: KindText, Content: "hello"}, "hello"},
		{&Message{Kind: KindImage, AttachmentURL: "https://x/y.jpg"}, "📷 Photo"},
		{&Message{Kind: KindVideo}, "🎥 Video"},
		{&Message{Kind: KindAudio}, "🎤 Audio"},
		{&Message{Kind: KindDocument}, "📄 Document"},
		{&Message{Kind: KindLocation, Content: "{}"}, "📍 Location"},
		{&Message{Kind: KindContact, Content: "{}"}, "👤 Contact"},
	}
	for _, tt := range tests {
		if got := Preview(tt.msg); got != tt.want {
			t.Errorf("Preview(%+v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestMapsURL(t *testing.T) {
	l := LocationPayload{Latitude: 1.5, Longitude: -2.25}
	if got, want := l.MapsURL(), "https://maps.google.com/?q=1.5,-2.25"; got != want {
		t.Errorf("MapsURL() = %q, want %q", got, want)
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("sticker"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	k, err := ParseKind("image")
	if err != nil || !k.IsAttachment() {
		t.Fatalf("ParseKind(image) = %v, %v", k, err)
	}
	if KindLocation.IsAttachment() || !KindLocation.IsStructured() {
		t.Fatal("location must be structured, not an attachment")
	}
}

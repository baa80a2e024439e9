package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/vedran77/chatsync/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxMessageLength = 4000

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 50 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Display name
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(displayName) < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if len(displayName) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateMessage(kind, content, attachmentURL, clientKey string) ValidationErrors {
	errs := make(ValidationErrors)

	k, err := domain.ParseKind(kind)
	if err != nil {
		errs.Add("kind", "Kind must be one of text, image, video, audio, document, contact, location")
		return errs
	}

	switch {
	case k == domain.KindText:
		if strings.TrimSpace(content) == "" {
			errs.Add("content", "Message content is required")
		} else if len(content) > maxMessageLength {
			errs.Add("content", "Message is too long")
		}
	case k.IsAttachment():
		if attachmentURL == "" {
			errs.Add("attachment_url", "Attachment URL is required")
		} else if u, err := url.Parse(attachmentURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs.Add("attachment_url", "Attachment URL must be an http(s) URL")
		}
	case k == domain.KindLocation:
		if _, err := domain.ParseLocation(content); err != nil {
			errs.Add("content", "Location must be JSON with latitude and longitude")
		}
	case k == domain.KindContact:
		if _, err := domain.ParseContact(content); err != nil {
			errs.Add("content", "Contact must be JSON with a name, phone or email")
		}
	}

	if len(clientKey) > 64 {
		errs.Add("client_key", "Client key is too long")
	}

	return errs
}

func ValidateGroup(name string, memberCount int) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Group name is required")
	} else if len(name) < 2 {
		errs.Add("name", "Group name must be at least 2 characters")
	} else if len(name) > 100 {
		errs.Add("name", "Group name is too long")
	}

	if memberCount < 1 {
		errs.Add("member_ids", "Pick at least one other member")
	}

	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}

package auth

import (
	"fmt"
	"regexp"
	"strings"
	"team-chat/domain"
	"team-chat/errors"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,29}$`)
	channelPattern  = regexp.MustCompile(`^[\w\s-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("channelname", func(fl validator.FieldLevel) bool {
		return channelPattern.MatchString(fl.Field().String())
	})
	return v
}

type SignupRequest struct {
	Username    string `validate:"required,min=3,max=30,username"`
	Password    string `validate:"required,min=6,max=128"`
	DisplayName string `validate:"required,min=1,max=50"`
}

type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type ChannelRequest struct {
	Name        string `validate:"required,min=1,max=50,channelname"`
	Description string `validate:"max=500"`
}

type AttachmentRequest struct {
	Filename string `validate:"required,max=255"`
	URL      string `validate:"required,url"`
	MimeType string `validate:"required"`
}

func ValidateSignup(req SignupRequest) error {
	return wrap(validate.Struct(req))
}

func ValidateLogin(req LoginRequest) error {
	return wrap(validate.Struct(req))
}

func ValidateChannel(req ChannelRequest) error {
	return wrap(validate.Struct(req))
}

// NormalizeText trims the message text and enforces the length bounds.
func NormalizeText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.ErrEmptyText
	}
	if utf8.RuneCountInString(trimmed) > domain.MaxMessageLength {
		return "", errors.ErrTextTooLong
	}
	return trimmed, nil
}

// ValidateAttachments rejects attachments with missing fields or a MIME type
// the server does not know about.
func ValidateAttachments(attachments []domain.Attachment) error {
	for _, a := range attachments {
		req := AttachmentRequest{Filename: a.Filename, URL: a.URL, MimeType: a.MimeType}
		if err := validate.Struct(req); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidAttachment, err)
		}
		if mimetype.Lookup(a.MimeType) == nil {
			return fmt.Errorf("%w: unknown mime type %q", errors.ErrInvalidAttachment, a.MimeType)
		}
	}
	return nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
}

package content

import (
	"strings"

	"gochat/internal/common"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindMixed Kind = "mixed"
)

// ImageGlyph stands in for an attached image in conversation previews.
const ImageGlyph = "📷"

func (k Kind) String() string {
	return string(k)
}

func (k Kind) IsValid() bool {
	switch k {
	case KindText, KindImage, KindMixed:
		return true
	}
	return false
}

// Content is the normalized payload of a message. Text and Image are set
// according to Kind and nothing else.
type Content struct {
	Kind  Kind   `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Classify tags a message by which of text and image are present. A body
// made only of whitespace counts as absent.
func Classify(text, imagePath string) (Content, error) {
	hasText := strings.TrimSpace(text) != ""
	hasImage := strings.TrimSpace(imagePath) != ""

	switch {
	case hasText && hasImage:
		return Content{Kind: KindMixed, Text: text, Image: imagePath}, nil
	case hasImage:
		return Content{Kind: KindImage, Image: imagePath}, nil
	case hasText:
		return Content{Kind: KindText, Text: text}, nil
	default:
		return Content{}, common.ErrInvalidContent
	}
}

// FromStored rebuilds a payload from persisted columns, trusting the stored
// kind instead of re-deriving it.
func FromStored(kind, text, imagePath string) Content {
	c := Content{Kind: Kind(kind)}
	switch c.Kind {
	case KindText:
		c.Text = text
	case KindImage:
		c.Image = imagePath
	default:
		c.Text = text
		c.Image = imagePath
	}
	return c
}

// Preview is the one-line display string for a conversation list.
func Preview(c Content) string {
	switch c.Kind {
	case KindImage:
		return ImageGlyph
	case KindMixed:
		return c.Text + ImageGlyph
	default:
		return c.Text
	}
}

package model_test

import (
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestMessageText(t *testing.T) {
	msg := model.Message{
		Role: model.RoleUser,
		Parts: []model.Part{
			model.TextPart{Text: "look at "},
			model.ImagePart{URL: "https://example.com/cat.png"},
			model.TextPart{Text: "this"},
		},
	}
	gt.Equal(t, msg.Text(), "look at this")
}

func TestImagePartDataURI(t *testing.T) {
	img := model.ImagePart{URL: "data:image/png;base64,iVBORw0KGgo="}
	gt.True(t, img.IsDataURI())
	gt.Equal(t, img.MIMEType(), "image/png")
	gt.Equal(t, img.Base64Data(), "iVBORw0KGgo=")

	remote := model.ImagePart{URL: "https://example.com/cat.png"}
	gt.False(t, remote.IsDataURI())
}

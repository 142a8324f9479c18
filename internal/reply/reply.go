// Package reply assembles the outbound skill envelope.
package reply

import "jarvis-webhook/internal/domain"

// Wrap places a single block in a versioned envelope. A block with no variant
// set becomes an empty text block so the envelope stays well formed.
func Wrap(block domain.OutputBlock) domain.Envelope {
	if block.SimpleText == nil && block.SimpleImage == nil {
		block = TextBlock("")
	}
	if block.SimpleText != nil && block.SimpleImage != nil {
		block.SimpleText = nil
	}
	return domain.Envelope{
		Version: domain.EnvelopeVersion,
		Template: domain.Template{
			Outputs: []domain.OutputBlock{block},
		},
	}
}

func TextBlock(text string) domain.OutputBlock {
	return domain.OutputBlock{SimpleText: &domain.SimpleText{Text: text}}
}

func ImageBlock(imageURL, altText string) domain.OutputBlock {
	return domain.OutputBlock{SimpleImage: &domain.SimpleImage{ImageURL: imageURL, AltText: altText}}
}

// Text wraps a plain answer.
func Text(text string) domain.Envelope {
	return Wrap(TextBlock(text))
}

// Image wraps a single image answer.
func Image(imageURL, altText string) domain.Envelope {
	return Wrap(ImageBlock(imageURL, altText))
}

// AnswerText returns the text a user sees for the envelope, used when the
// reply is recorded in the conversation history.
func AnswerText(env domain.Envelope) string {
	if len(env.Template.Outputs) == 0 {
		return ""
	}
	b := env.Template.Outputs[0]
	switch {
	case b.SimpleText != nil:
		return b.SimpleText.Text
	case b.SimpleImage != nil:
		return b.SimpleImage.ImageURL
	default:
		return ""
	}
}

package domain

// EnvelopeVersion is the skill response version understood by the messenger.
const EnvelopeVersion = "2.0"

// Envelope is the outbound reply.
type Envelope struct {
	Version  string   `json:"version"`
	Template Template `json:"template"`
}

type Template struct {
	Outputs []OutputBlock `json:"outputs"`
}

// OutputBlock holds exactly one of its variants.
type OutputBlock struct {
	SimpleText  *SimpleText  `json:"simpleText,omitempty"`
	SimpleImage *SimpleImage `json:"simpleImage,omitempty"`
}

type SimpleText struct {
	Text string `json:"text"`
}

type SimpleImage struct {
	ImageURL string `json:"imageUrl"`
	AltText  string `json:"altText"`
}

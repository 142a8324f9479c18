package domain

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentChat     Intent = "chat"
	IntentSchedule Intent = "schedule"
	IntentPhoto    Intent = "photo"
	IntentNews     Intent = "news"
	IntentUnknown  Intent = "unknown"
)

// ParseIntent maps a model label onto a known intent. Labels outside the
// enumerated set report false.
func ParseIntent(label string) (Intent, bool) {
	switch Intent(label) {
	case IntentChat, IntentSchedule, IntentPhoto, IntentNews:
		return Intent(label), true
	default:
		return IntentUnknown, false
	}
}

// ParamSet is the typed argument bag extracted alongside an intent. Only the
// variants in this package implement it.
type ParamSet interface {
	Intent() Intent
	paramSet()
}

type ChatParams struct{}

// ScheduleParams carries the absolute date (YYYY-MM-DD) the utterance refers
// to, when one was mentioned.
type ScheduleParams struct {
	Date string
}

// PhotoParams describes either an upload (PhotoURL set) or a retrieval by
// upload date (PhotoDate set).
type PhotoParams struct {
	PhotoURL    string
	Description string
	PhotoDate   string
}

type NewsParams struct{}

// UnknownParams keeps the label the model produced for logging.
type UnknownParams struct {
	Label string
}

func (ChatParams) Intent() Intent     { return IntentChat }
func (ScheduleParams) Intent() Intent { return IntentSchedule }
func (PhotoParams) Intent() Intent    { return IntentPhoto }
func (NewsParams) Intent() Intent     { return IntentNews }
func (UnknownParams) Intent() Intent  { return IntentUnknown }

func (ChatParams) paramSet()     {}
func (ScheduleParams) paramSet() {}
func (PhotoParams) paramSet()    {}
func (NewsParams) paramSet()     {}
func (UnknownParams) paramSet()  {}

// IsRetrieval reports whether the photo request asks for stored photos.
func (p PhotoParams) IsRetrieval() bool {
	return p.PhotoDate != ""
}

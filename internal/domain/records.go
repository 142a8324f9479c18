package domain

import "time"

// PhotoRecord is a photo a user uploaded.
type PhotoRecord struct {
	UserID      string
	PhotoURL    string
	Description string
	Timestamp   time.Time
}

// ScheduleEntry is a remembered appointment. Date is YYYY-MM-DD and Time is
// HH:mm.
type ScheduleEntry struct {
	UserID    string
	Name      string
	Date      string
	Time      string
	Timestamp time.Time
}

// NewsTopic is a summarized news cluster returned by semantic search.
type NewsTopic struct {
	Title   string
	Summary string
	Sources []string
	Score   float32
}

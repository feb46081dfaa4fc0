package history

import "time"

// Status is the lifecycle state of a request.
type Status string

const (
	StatusRejected   Status = "rejected"
	StatusRunning    Status = "running"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Entry is one recorded request.
type Entry struct {
	ID           string    `json:"id"`
	AlbumID      string    `json:"album_id"`
	StartChapter int       `json:"start_chapter"`
	EndChapter   int       `json:"end_chapter"`
	Source       string    `json:"source,omitempty"`
	Requester    string    `json:"requester,omitempty"`
	Status       Status    `json:"status"`
	Title        string    `json:"title,omitempty"`
	PDFCount     int       `json:"pdf_count"`
	SentCount    int       `json:"sent_count"`
	TotalSize    int64     `json:"total_size"`
	Tier         string    `json:"tier,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OutputDir    string    `json:"output_dir,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

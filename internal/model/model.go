package model

import "time"

// ScheduleStatus is the lifecycle state of a booked interview.
// The vocabulary is fixed by the backend.
type ScheduleStatus string

const (
	StatusPending   ScheduleStatus = "Pending"
	StatusAccepted  ScheduleStatus = "Accepted"
	StatusCancelled ScheduleStatus = "Cancelled"
	StatusCompleted ScheduleStatus = "Completed"
)

// ModalityOnline is the modality tag for remote interviews. Any other
// non-empty modality value is an in-person location string.
const ModalityOnline = "online"

// Placeholder values used when the backend omits applicant identity.
const (
	PlaceholderApplicantName  = "Unknown Applicant"
	PlaceholderApplicantEmail = "unknown@example.com"
)

// ScheduleEvent is a booked interview slot as delivered by the backend.
// It is read-only on the client except for the status transition to
// Cancelled, which is applied locally after a successful cancellation.
type ScheduleEvent struct {
	ID        string `json:"id"`
	MeetingID string `json:"meeting_id"` // separate identifier used for cancellation

	// StartDate is the backend-owned date value, typically RFC 3339 or a
	// bare yyyy-MM-dd. StartTime/EndTime may arrive in 24-hour or 12-hour
	// form and are normalized only for display.
	StartDate string `json:"start_schedule_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	Subject  string         `json:"subject"`
	Modality string         `json:"modality"`
	Status   ScheduleStatus `json:"status"`
	Remarks  string         `json:"remarks,omitempty"`
	// MeetingLink is present only when the modality is online and the
	// interview has been accepted.
	MeetingLink string `json:"meeting_link,omitempty"`

	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`
}

// Online reports whether the interview is held remotely.
func (e *ScheduleEvent) Online() bool {
	return e.Modality == ModalityOnline
}

// Normalize fills placeholder applicant identity when the backend omits it.
func (e *ScheduleEvent) Normalize() {
	if e.ApplicantName == "" {
		e.ApplicantName = PlaceholderApplicantName
	}
	if e.ApplicantEmail == "" {
		e.ApplicantEmail = PlaceholderApplicantEmail
	}
}

// Conversation is one message thread between the current actor and a
// counterpart, scoped to a job application. Active and Unread are
// client-local presentation state.
type Conversation struct {
	ID            string    `json:"id"`
	CounterpartID string    `json:"counterpart_id"`
	Counterpart   string    `json:"counterpart"`
	Initial       string    `json:"initial"`
	Preview       string    `json:"preview"`
	PreviewAt     time.Time `json:"preview_at"`
	Active        bool      `json:"active"`
	Unread        int       `json:"unread"`
}

// Segment is a single text portion of a message. The backend allows a
// message to carry several independently timestamped segments, though a
// single segment is the common case.
type Segment struct {
	Text string    `json:"text"`
	At   time.Time `json:"at,omitempty"`
}

// Message is one entry of a conversation's history. Received is true for
// messages sent by the counterpart; directionality is a boolean rather
// than a sender enum.
type Message struct {
	ID       string    `json:"id"`
	Received bool      `json:"received"`
	Segments []Segment `json:"segments"`
	At       time.Time `json:"at"`
}

// Text flattens the message segments into a single display string.
func (m *Message) Text() string {
	switch len(m.Segments) {
	case 0:
		return ""
	case 1:
		return m.Segments[0].Text
	}
	out := m.Segments[0].Text
	for _, s := range m.Segments[1:] {
		out += "\n" + s.Text
	}
	return out
}

// Identity is the authenticated actor attached to outgoing requests.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

package model

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message types shown in a contact thread.
const (
	MessageTypeSMS    = "sms"
	MessageTypeMMS    = "mms"
	MessageTypeCall   = "call"
	MessageTypeSystem = "system"
	MessageTypeNote   = "note"
)

// Message is one entry of a contact's communication thread (SMS, call, note).
type Message struct {
	ID          string `json:"id"`
	ContactID   string `json:"contact_id"`
	Direction   string `json:"direction"`
	Type        string `json:"type"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
	UserID      string `json:"user_id,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Disposition string `json:"disposition,omitempty"`
}

// Sequence is an automated outreach sequence contacts can be enrolled in.
type Sequence struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StepsCount     int    `json:"steps_count"`
	ActiveContacts int    `json:"active_contacts"`
}

// Enrollment states.
const (
	EnrollmentActive      = "active"
	EnrollmentFinished    = "finished"
	EnrollmentDisenrolled = "disenrolled"
)

// Enrollment links a contact to a sequence.
type Enrollment struct {
	ContactID   string `json:"contact_id"`
	SequenceID  string `json:"sequence_id"`
	Status      string `json:"status"`
	CurrentStep int    `json:"current_step"`
	EnrolledAt  string `json:"enrolled_at"`
}

// Agent is a user of the phone system and their availability.
type Agent struct {
	ID                       int64  `json:"id"`
	Name                     string `json:"name"`
	Email                    string `json:"email"`
	AgentStatus              int    `json:"agent_status"`
	HumanReadableAgentStatus string `json:"human_readable_agent_status"`
}

// RingGroupAvailability summarises how many agents of a ring group can take calls.
type RingGroupAvailability struct {
	AvailableUsersCount   int `json:"available_users_count"`
	UnavailableUsersCount int `json:"unavailable_users_count"`
	TotalUsersCount       int `json:"total_users_count"`
}

// LookupResult is the carrier / LRN lookup answer for a phone number.
type LookupResult struct {
	Carrier  string `json:"carrier"`
	LineType string `json:"line_type"`
	Data     struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"data"`
}

// unknownLookupValues are placeholders the lookup endpoint uses for "no data".
var unknownLookupValues = map[string]bool{"": true, "N/A": true, "Unknown": true}

// Location returns the city/state of the lookup and whether any of it is real data.
func (l LookupResult) Location() (city, state string, ok bool) {
	if !unknownLookupValues[l.Data.City] {
		city = l.Data.City
	}
	if !unknownLookupValues[l.Data.State] {
		state = l.Data.State
	}
	return city, state, city != "" || state != ""
}

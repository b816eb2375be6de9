package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// Call-log export columns.
const (
	colStartedAt         = "Started At"
	colType              = "Type"
	colDirection         = "Direction"
	colDispositionStatus = "Disposition Status"
	colIncomingNumber    = "Incoming Number"
	colSequenceName      = "Sequence Name"
	colContactNumber     = "Contact Number"
	colContactFirstName  = "Contact First Name"
	colContactLastName   = "Contact Last Name"
	colBody              = "Body"
	colCallDisposition   = "Call Disposition"
	colRecording         = "Recording"
)

const (
	unknownContactName = "Unknown Contact"
	unknownFirstName   = "Unknown"
	defaultCallSeconds = 120
	avatarURLFormat    = "https://ui-avatars.com/api/?name=%s&background=random&color=fff"
)

// ErrMalformedCallLog is returned when the export cannot be interpreted.
var ErrMalformedCallLog = fmt.Errorf("malformed call log: %w", apperrors.ErrBadRequest)

// CallLog is everything derived from one call-log export.
type CallLog struct {
	Contacts    []model.Contact
	Messages    []model.Message
	Sequences   []model.Sequence
	Enrollments []model.Enrollment
}

// MessagesFor returns the thread of one contact in export order.
func (l *CallLog) MessagesFor(contactID string) []model.Message {
	out := make([]model.Message, 0)
	if l == nil {
		return out
	}
	for _, m := range l.Messages {
		if m.ContactID == contactID {
			out = append(out, m)
		}
	}
	return out
}

// EnrollmentsFor returns the sequence enrollments of one contact.
func (l *CallLog) EnrollmentsFor(contactID string) []model.Enrollment {
	out := make([]model.Enrollment, 0)
	if l == nil {
		return out
	}
	for _, e := range l.Enrollments {
		if e.ContactID == contactID {
			out = append(out, e)
		}
	}
	return out
}

// header maps column names to their position in a row.
type header map[string]int

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseCallLog reads a call-log CSV export. Quoted fields may span lines.
// Rows without a contact or incoming number are skipped.
func ParseCallLog(r io.Reader) (*CallLog, error) {
	// Excel exports start with a byte order mark.
	br := bufio.NewReader(r)
	if ch, _, err := br.ReadRune(); err == nil && ch != '\ufeff' {
		_ = br.UnreadRune()
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	headRow, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMalformedCallLog)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallLog, err)
	}

	h := make(header, len(headRow))
	for i, name := range headRow {
		name = strings.TrimSpace(name)
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	_, hasContact := h[colContactNumber]
	_, hasIncoming := h[colIncomingNumber]
	if !hasContact && !hasIncoming {
		return nil, fmt.Errorf("%w: no %q or %q column", ErrMalformedCallLog, colContactNumber, colIncomingNumber)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCallLog, err)
		}
		rows = append(rows, row)
	}

	sequences, enrollments := buildSequences(h, rows)
	return &CallLog{
		Contacts:    buildContacts(h, rows),
		Messages:    buildMessages(h, rows),
		Sequences:   sequences,
		Enrollments: enrollments,
	}, nil
}

func rowPhone(h header, row []string) string {
	if phone := h.get(row, colContactNumber); phone != "" {
		return phone
	}
	return h.get(row, colIncomingNumber)
}

// avatarURL mirrors JavaScript's encodeURIComponent for the name parameter.
func avatarURL(name string) string {
	return fmt.Sprintf(avatarURLFormat, strings.ReplaceAll(url.QueryEscape(name), "+", "%20"))
}

// createdAt normalizes recognised timestamps to RFC 3339 and keeps anything
// else verbatim.
func createdAt(raw string) string {
	if t, err := utils.ParseTimestamp(raw); err == nil {
		return utils.FormatISO8601(t)
	}
	return raw
}

// buildContacts yields one contact per phone number in first-appearance
// order. A later row replaces the contact only when it names a first name.
func buildContacts(h header, rows [][]string) []model.Contact {
	order := make([]string, 0)
	byPhone := make(map[string]model.Contact)

	for _, row := range rows {
		phone := rowPhone(h, row)
		if phone == "" {
			continue
		}
		first := h.get(row, colContactFirstName)
		last := h.get(row, colContactLastName)

		_, known := byPhone[phone]
		if first == "" && known {
			continue
		}
		if !known {
			order = append(order, phone)
		}

		name := unknownContactName
		if first != "" || last != "" {
			name = strings.TrimSpace(first + " " + last)
		}
		firstName := first
		if firstName == "" {
			firstName = unknownFirstName
		}

		byPhone[phone] = model.Contact{
			ID:          phone,
			PhoneNumber: phone,
			FirstName:   firstName,
			LastName:    last,
			Name:        name,
			Tags:        []string{},
			AvatarURL:   avatarURL(name),
		}
	}

	contacts := make([]model.Contact, 0, len(order))
	for _, phone := range order {
		contacts = append(contacts, byPhone[phone])
	}
	return contacts
}

func callDisposition(h header, row []string) string {
	d := h.get(row, colCallDisposition)
	if d == "" {
		d = h.get(row, colDispositionStatus)
	}
	switch d {
	case "completed":
		return "Connected"
	case "no-answer":
		return "No Answer"
	default:
		return d
	}
}

// buildMessages turns every row with a phone number into a thread entry.
// Message ids use the row position so they stay stable across reloads.
func buildMessages(h header, rows [][]string) []model.Message {
	messages := make([]model.Message, 0, len(rows))
	for idx, row := range rows {
		phone := rowPhone(h, row)
		if phone == "" {
			continue
		}

		msg := model.Message{
			ID:        fmt.Sprintf("msg-%d", idx),
			ContactID: phone,
			Direction: strings.ToLower(h.get(row, colDirection)),
			Type:      model.MessageTypeCall,
			Body:      h.get(row, colBody),
			CreatedAt: createdAt(h.get(row, colStartedAt)),
			MediaURL:  h.get(row, colRecording),
		}
		if strings.EqualFold(h.get(row, colType), model.MessageTypeSMS) {
			msg.Type = model.MessageTypeSMS
		} else {
			msg.Disposition = callDisposition(h, row)
			msg.Duration = defaultCallSeconds
			if msg.Body == "" {
				msg.Body = "Call " + h.get(row, colDispositionStatus)
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

// buildSequences collects sequences in first-appearance order and enrolls each
// contact number once per sequence. A sequence's step count is the number of
// distinct bodies sent from it.
func buildSequences(h header, rows [][]string) ([]model.Sequence, []model.Enrollment) {
	sequences := make([]model.Sequence, 0)
	enrollments := make([]model.Enrollment, 0)
	idByName := make(map[string]int)
	bodies := make(map[string]map[string]struct{})
	enrolled := make(map[[2]string]struct{})

	for _, row := range rows {
		seqName := h.get(row, colSequenceName)
		if seqName == "" {
			continue
		}
		pos, ok := idByName[seqName]
		if !ok {
			pos = len(sequences)
			idByName[seqName] = pos
			sequences = append(sequences, model.Sequence{ID: fmt.Sprintf("seq-%d", pos), Name: seqName})
			bodies[seqName] = make(map[string]struct{})
		}
		if body := h.get(row, colBody); body != "" {
			bodies[seqName][body] = struct{}{}
		}

		phone := h.get(row, colContactNumber)
		if phone == "" {
			continue
		}
		key := [2]string{phone, sequences[pos].ID}
		if _, dup := enrolled[key]; dup {
			continue
		}
		enrolled[key] = struct{}{}
		enrollments = append(enrollments, model.Enrollment{
			ContactID:   phone,
			SequenceID:  sequences[pos].ID,
			Status:      model.EnrollmentActive,
			CurrentStep: 1,
			EnrolledAt:  createdAt(h.get(row, colStartedAt)),
		})
		sequences[pos].ActiveContacts++
	}

	for i := range sequences {
		sequences[i].StepsCount = len(bodies[sequences[i].Name])
	}
	return sequences, enrollments
}

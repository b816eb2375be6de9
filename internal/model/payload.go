package model

// SendSMSPayload is the body of a send-message action.
type SendSMSPayload struct {
	Message  string `json:"message" validate:"required"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
}

// StartCallPayload is the body of a two-legged call action. UserPhoneNumber is
// the agent device rung first; the configured default is used when empty.
type StartCallPayload struct {
	UserPhoneNumber string `json:"user_phone_number,omitempty" validate:"omitempty,phone"`
}

// ActionResponse is returned by the contact action endpoints.
type ActionResponse struct {
	Status    string `json:"status"`
	ContactID string `json:"contact_id"`
	Action    string `json:"action"`
}

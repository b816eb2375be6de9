// Package api serves the contact index and contact actions over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// EventPublisher announces contact mutations made through the API.
type EventPublisher interface {
	PublishUpserted(ctx context.Context, contact model.Contact) error
	PublishRemoved(ctx context.Context, contactID string) error
}

// Handler holds the API's dependencies.
type Handler struct {
	contacts  usecase.ContactServiceInterface
	actions   usecase.ActionServiceInterface
	publisher EventPublisher // nil when NATS is disabled
	companyID string
	logger    *zap.Logger
}

// NewHandler creates the API handler. publisher may be nil.
func NewHandler(contacts usecase.ContactServiceInterface, actions usecase.ActionServiceInterface, publisher EventPublisher, companyID string, log *zap.Logger) *Handler {
	return &Handler{
		contacts:  contacts,
		actions:   actions,
		publisher: publisher,
		companyID: companyID,
		logger:    log.Named("api"),
	}
}

// Routes returns the API mux wrapped in the request middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/contacts", h.listContacts)
	mux.HandleFunc("GET /v1/contacts/{id}", h.getContact)
	mux.HandleFunc("PUT /v1/contacts/{id}", h.upsertContact)
	mux.HandleFunc("DELETE /v1/contacts/{id}", h.removeContact)
	mux.HandleFunc("POST /v1/contacts/{id}/enrich", h.enrichContact)
	mux.HandleFunc("GET /v1/contacts/{id}/messages", h.listMessages)
	mux.HandleFunc("GET /v1/contacts/{id}/enrollments", h.listEnrollments)

	mux.HandleFunc("POST /v1/contacts/{id}/sms", h.sendSMS)
	mux.HandleFunc("POST /v1/contacts/{id}/call", h.startCall)
	mux.HandleFunc("POST /v1/contacts/{id}/sequences/{sequenceID}/enroll", h.enroll)
	mux.HandleFunc("POST /v1/contacts/{id}/sequences/disenroll", h.disenroll)

	mux.HandleFunc("GET /v1/sequences", h.listSequences)
	mux.HandleFunc("GET /v1/agents", h.listAgents)
	mux.HandleFunc("GET /v1/ring-groups/{id}/availability", h.ringGroupAvailability)

	return h.withRequestContext(mux)
}

func decode(r *http.Request, v interface{}) error {
	if err := utils.DecodeJSONBody(r, v); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err)
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be omitted.
func decodeOptional(r *http.Request, v interface{}) error {
	if err := utils.DecodeJSONBody(r, v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err)
	}
	return nil
}

// listContacts returns every contact, or the matches of ?q= when given.
func (h *Handler) listContacts(w http.ResponseWriter, r *http.Request) {
	var out []model.Contact
	if q := r.URL.Query().Get("q"); q != "" {
		out = h.contacts.Search(r.Context(), q)
	} else {
		out = h.contacts.List(r.Context())
	}
	if out == nil {
		out = []model.Contact{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, out)
}

func (h *Handler) getContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, c)
}

// upsertContact stores the body as the full snapshot of the contact named in
// the path. The path id wins over any id in the body.
func (h *Handler) upsertContact(w http.ResponseWriter, r *http.Request) {
	var payload model.UpsertContactPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	payload.ID = r.PathValue("id")

	ctx := usecase.WithSource(r.Context(), usecase.SourceAPI)
	c, err := h.contacts.Upsert(ctx, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishUpserted(ctx, c); err != nil {
			logger.FromContext(ctx).Warn("Failed to publish contact upsert", zap.String("contact_id", c.ID), zap.Error(err))
		}
	}
	utils.WriteJSONResponse(w, http.StatusOK, c)
}

func (h *Handler) removeContact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := usecase.WithSource(r.Context(), usecase.SourceAPI)
	if err := h.contacts.Remove(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRemoved(ctx, id); err != nil {
			logger.FromContext(ctx).Warn("Failed to publish contact removal", zap.String("contact_id", id), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enrichContact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.contacts.Enrich(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusAccepted, model.ActionResponse{
		Status:    "accepted",
		ContactID: id,
		Action:    "enrich",
	})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.contacts.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, msgs)
}

func (h *Handler) listEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.contacts.Enrollments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if enrollments == nil {
		enrollments = []model.Enrollment{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, enrollments)
}

func (h *Handler) listSequences(w http.ResponseWriter, r *http.Request) {
	seqs := h.contacts.Sequences(r.Context())
	if seqs == nil {
		seqs = []model.Sequence{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, seqs)
}

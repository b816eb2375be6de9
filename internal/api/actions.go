package api

import (
	"net/http"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

func (h *Handler) sendSMS(w http.ResponseWriter, r *http.Request) {
	var payload model.SendSMSPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.actions.SendSMS(r.Context(), r.PathValue("id"), payload))
}

func (h *Handler) startCall(w http.ResponseWriter, r *http.Request) {
	var payload model.StartCallPayload
	if err := decodeOptional(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.actions.StartCall(r.Context(), r.PathValue("id"), payload))
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.actions.EnrollInSequence(r.Context(), r.PathValue("id"), r.PathValue("sequenceID")))
}

func (h *Handler) disenroll(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.actions.DisenrollFromSequence(r.Context(), r.PathValue("id")))
}

// respond writes the outcome of a contact action.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) func(model.ActionResponse, error) {
	return func(resp model.ActionResponse, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.WriteJSONResponse(w, http.StatusOK, resp)
	}
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.actions.ListAgents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if agents == nil {
		agents = []model.Agent{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, agents)
}

func (h *Handler) ringGroupAvailability(w http.ResponseWriter, r *http.Request) {
	avail, err := h.actions.InboxAvailability(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, avail)
}

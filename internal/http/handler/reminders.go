package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tranductridung/bds/internal/auth"
	"github.com/tranductridung/bds/internal/reminder"

	"github.com/go-chi/chi/v5"
)

type ReminderHandler struct {
	Svc *reminder.Service
}

type createReminderReq struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	RemindAt   string `json:"remindAt"` // RFC3339
	AssigneeID uint64 `json:"assigneeId"`
}

func (h *ReminderHandler) CreateSelf(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

func (h *ReminderHandler) CreateForUser(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *ReminderHandler) create(w http.ResponseWriter, r *http.Request, forUser bool) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createReminderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "title and message required", http.StatusBadRequest)
		return
	}

	remindAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.RemindAt))
	if err != nil {
		http.Error(w, "invalid remindAt (RFC3339)", http.StatusBadRequest)
		return
	}

	in := reminder.CreateInput{
		Title:      req.Title,
		Message:    req.Message,
		RemindAt:   remindAt,
		AssigneeID: req.AssigneeID,
	}

	var rem *reminder.Reminder
	if forUser {
		rem, err = h.Svc.Create(r.Context(), uid, in)
	} else {
		rem, err = h.Svc.CreateSelf(r.Context(), uid, in)
	}
	if err != nil {
		writeReminderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rem)
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 0 {
		page = 0
	}

	items, total, err := h.Svc.FindAll(r.Context(), uid, page, limit, r.URL.Query().Get("search"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reminders": items,
		"total":     total,
	})
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := reminderID(w, r)
	if !ok {
		return
	}

	rem, err := h.Svc.FindOne(r.Context(), id)
	if err != nil {
		writeReminderError(w, err)
		return
	}
	if rem.CreatorID != uid && rem.AssigneeID != uid {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rem)
}

type updateReminderReq struct {
	Title    *string `json:"title"`
	Message  *string `json:"message"`
	RemindAt *string `json:"remindAt"`
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := reminderID(w, r)
	if !ok {
		return
	}

	var req updateReminderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	in := reminder.UpdateInput{Title: req.Title, Message: req.Message}
	if req.RemindAt != nil && strings.TrimSpace(*req.RemindAt) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.RemindAt))
		if err != nil {
			http.Error(w, "invalid remindAt (RFC3339)", http.StatusBadRequest)
			return
		}
		in.RemindAt = &t
	}

	rem, err := h.Svc.Update(r.Context(), uid, id, in)
	if err != nil {
		writeReminderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rem)
}

func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := reminderID(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Cancel(r.Context(), uid, id); err != nil {
		writeReminderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func reminderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeReminderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, reminder.ErrAssigneeNotFound):
		http.Error(w, "assignee not found", http.StatusNotFound)
	case errors.Is(err, reminder.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, reminder.ErrRemindAtPast),
		errors.Is(err, reminder.ErrNotActive),
		errors.Is(err, reminder.ErrAlreadyCancelled),
		errors.Is(err, reminder.ErrAlreadyDelivered):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

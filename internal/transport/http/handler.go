package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parley-chat/server/internal/domain"
	"github.com/parley-chat/server/internal/postgres"
	"github.com/parley-chat/server/internal/service"
	httpmw "github.com/parley-chat/server/internal/transport/http/middleware"
)

type Handler struct {
	authSvc    *service.AuthService
	contactSvc *service.ContactService
	roomSvc    *service.RoomService
	directSvc  *service.DirectService
}

func NewHandler(auth *service.AuthService, contacts *service.ContactService, rooms *service.RoomService, directs *service.DirectService) *Handler {
	return &Handler{
		authSvc:    auth,
		contactSvc: contacts,
		roomSvc:    rooms,
		directSvc:  directs,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toUserItem(u *domain.User) UserItem {
	return UserItem{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

// POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	res, err := h.authSvc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "email already registered"})
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrPasswordTooShort):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("handler.Register:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: res.Token, User: toUserItem(res.User)})
}

// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	res, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		slog.Error("handler.Login:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: res.Token, User: toUserItem(res.User)})
}

// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := httpmw.TokenFromCtx(r.Context())
	if err := h.authSvc.Logout(r.Context(), token); err != nil {
		slog.Error("handler.Logout:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "logged out"})
}

// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	u, err := h.authSvc.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		slog.Error("handler.Me:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toUserItem(u))
}

// PUT /api/me
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	u, err := h.authSvc.UpdateProfile(r.Context(), userID, req.DisplayName, req.AvatarURL)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		slog.Error("handler.UpdateProfile:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toUserItem(u))
}

// GET /api/contacts
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	items, err := h.contactSvc.List(r.Context(), userID)
	if err != nil {
		slog.Error("handler.ListContacts:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ContactsResponse{Items: make([]ContactItem, 0, len(items))}
	for _, c := range items {
		resp.Items = append(resp.Items, ContactItem{
			UserID:      c.ContactID,
			Email:       c.Email,
			DisplayName: c.DisplayName,
			AvatarURL:   c.AvatarURL,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /api/contacts
func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req AddContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	c, err := h.contactSvc.AddByEmail(r.Context(), userID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no user with that email"})
		case errors.Is(err, domain.ErrSelfContact):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.Error("handler.AddContact:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, ContactItem{
		UserID:      c.ContactID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	})
}

// GET /api/directs/{userId}?after=&limit=
func (h *Handler) ListDirects(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	otherID := chi.URLParam(r, "userId")
	after := r.URL.Query().Get("after")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.directSvc.Conversation(r.Context(), userID, otherID, after, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListDirects:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := DirectsResponse{Items: make([]DirectItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, DirectItem(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /api/directs/{userId}
func (h *Handler) SendDirect(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	otherID := chi.URLParam(r, "userId")

	var req SendDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	m, err := h.directSvc.Send(r.Context(), userID, otherID, req.RoomID, req.Content)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "recipient not found"})
			return
		}
		slog.Error("handler.SendDirect:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, DirectItem(*m))
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name, userID)
	if err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, RoomItem{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	})
}

// GET /api/rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	room, err := h.roomSvc.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RoomItem{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	})
}

// GET /api/rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	rooms, next, err := h.roomSvc.ListRooms(r.Context(), limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, RoomItem{
			ID:        rm.ID,
			Name:      rm.Name,
			CreatedBy: rm.CreatedBy,
			CreatedAt: rm.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /api/rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	roomID := chi.URLParam(r, "id")

	if err := h.roomSvc.JoinRoom(r.Context(), roomID, userID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.JoinRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "joined"})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"transcendence/infrastructure"
	"transcendence/internal/gateway"
	"transcendence/internal/notification"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	u, err := s.authService.Register(r.Context(), input.Username, input.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"userId": u.ID, "username": u.Username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	token, err := s.authService.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

// listNotifications backs the pull side of notification delivery: the
// senders behind pending notifications of the requested type.
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	typ := notification.Type(r.URL.Query().Get("type"))
	senders, err := s.notifications.PendingSenders(r.Context(), identity.ID, typ)
	if err != nil {
		s.writeError(w, err)
		return
	}

	users := make([]map[string]any, 0, len(senders))
	for _, id := range senders {
		u, err := s.users.ByID(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		users = append(users, map[string]any{"id": u.ID, "username": u.Username})
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) friendRequest(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var input struct {
		Friend string `json:"friend"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	friend, err := s.users.ByUsername(r.Context(), input.Friend)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if friend.ID == identity.ID {
		http.Error(w, "you cannot add yourself as a friend", http.StatusForbidden)
		return
	}
	already, err := s.users.IsFriend(r.Context(), identity.ID, friend.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if already {
		http.Error(w, "you are already friends", http.StatusForbidden)
		return
	}

	n, err := s.notifications.Notify(r.Context(), friend.ID, identity.ID, notification.TypeFriendRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) friendResponse(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var input struct {
		Response bool  `json:"response"`
		FriendID int64 `json:"friendId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	senders, err := s.notifications.Resolve(r.Context(), identity.ID, input.FriendID, notification.TypeFriendRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !input.Response {
		writeJSON(w, http.StatusOK, map[string]string{"message": "declined"})
		return
	}

	if err := s.users.AddFriend(r.Context(), identity.ID, input.FriendID); err != nil {
		s.writeError(w, err)
		return
	}
	for _, sender := range senders {
		s.pusher.ToUser(sender, gateway.EventFriendAccepted, gateway.FriendAcceptedEvent{
			UserID:   identity.ID,
			Username: identity.Username,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "accepted"})
}

func (s *Server) gameRequest(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var input struct {
		FriendID int64 `json:"friendId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	exists, err := s.users.Exists(r.Context(), input.FriendID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !exists {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	if err := s.matches.Invite(r.Context(), identity.ID, input.FriendID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "invited"})
}

func (s *Server) userStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	exists, err := s.users.Exists(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !exists {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(s.registry.Status(id))})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	chats, err := s.chats.ChatsForUser(r.Context(), identity.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, infrastructure.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, infrastructure.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, infrastructure.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, infrastructure.ErrInvalidOperation), errors.Is(err, infrastructure.ErrInvalidInput):
		http.Error(w, "invalid request", http.StatusBadRequest)
	case errors.Is(err, infrastructure.ErrUnauthorized),
		errors.Is(err, infrastructure.ErrMissingToken),
		errors.Is(err, infrastructure.ErrInvalidToken):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

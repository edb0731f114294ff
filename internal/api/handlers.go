package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mfalchik/chatsync/internal/chat"
	"github.com/mfalchik/chatsync/internal/server"
	"github.com/mfalchik/chatsync/internal/types"
)

type UpdateChatRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddParticipantRequest struct {
	UserId int `json:"user_id"`
}

type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type UpdateStatusRequest struct {
	Status types.UserStatus `json:"status"`
}

type MarkAsReadResponse struct {
	ChatId    string `json:"chat_id"`
	ReadCount int    `json:"read_count"`
}

func (s *ChatSyncApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatSyncApp) writeDomainError(w http.ResponseWriter, err error) {
	errResp := domainError(err)
	if errResp.StatusCode == http.StatusInternalServerError {
		s.log.Printf("internal error: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *ChatSyncApp) createChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req chat.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newChat, err := s.chats.CreateChat(sess.UserId, req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, newChat)
}

func (s *ChatSyncApp) listChats(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summaries, err := s.chats.ListChats(sess.UserId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, summaries)
}

func (s *ChatSyncApp) getChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	c, err := s.chats.GetChat(sess.UserId, mux.Vars(r)["chatId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, c)
}

func (s *ChatSyncApp) updateChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	c, err := s.chats.UpdateChat(sess.UserId, mux.Vars(r)["chatId"], req.Name, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, c)
}

func (s *ChatSyncApp) deleteChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.DeleteChat(sess.UserId, mux.Vars(r)["chatId"]); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) listParticipants(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participants, err := s.chats.Participants(sess.UserId, mux.Vars(r)["chatId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, participants)
}

func (s *ChatSyncApp) addParticipant(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.AddParticipant(sess.UserId, mux.Vars(r)["chatId"], req.UserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) removeParticipant(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	vars := mux.Vars(r)
	removeUserId, err := strconv.Atoi(vars["userId"])
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.RemoveParticipant(sess.UserId, vars["chatId"], removeUserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) togglePin(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.TogglePin(sess.UserId, mux.Vars(r)["chatId"], req.Enabled); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) toggleArchive(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.ToggleArchive(sess.UserId, mux.Vars(r)["chatId"], req.Enabled); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req chat.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.chats.Send(sess.UserId, req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ChatSyncApp) getMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.chats.History(sess.UserId, mux.Vars(r)["chatId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatSyncApp) markAsRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chatId := mux.Vars(r)["chatId"]
	count, err := s.chats.MarkAsRead(sess.UserId, chatId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, MarkAsReadResponse{ChatId: chatId, ReadCount: count})
}

func (s *ChatSyncApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	vars := mux.Vars(r)
	messageId, err := strconv.Atoi(vars["messageId"])
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.chats.DeleteMessage(sess.UserId, vars["chatId"], messageId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) health(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		s.writeJson(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ChatSyncApp) updateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateUserStatus(sess.UserId, string(req.Status), time.Now().UTC()); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatSyncApp) serveWs(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(sess.UserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(sess, conn, s.gateway, s.log)

	s.gateway.Register(client)
	go client.Write()
	go client.Read()
}

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mfalchik/chatsync/internal/chat"
	"github.com/mfalchik/chatsync/internal/config"
	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/server"
)

type ChatSyncApp struct {
	log            *log.Logger
	db             database.ChatSyncRepository
	chats          *chat.Service
	gateway        *server.Gateway
	srv            *http.Server
	signingKey     []byte
	allowedOrigins []string
	authLimiter    *limiterPool
}

func NewChatSyncApp(logger *log.Logger, chats *chat.Service, gw *server.Gateway, db database.ChatSyncRepository, metrics http.Handler, cfg *config.Config) *ChatSyncApp {
	s := &ChatSyncApp{
		log:            logger,
		db:             db,
		chats:          chats,
		gateway:        gw,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	if cfg.AuthRateLimit > 0 {
		s.authLimiter = newLimiterPool(cfg.AuthRateLimit)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/register", s.rateLimit(s.createAccount)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.rateLimit(s.login)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.authMiddleware(s.logout)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/session", s.authMiddleware(s.sessionInfo)).Methods(http.MethodGet)

	r.HandleFunc("/api/chat/create", s.authMiddleware(s.createChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/user-chats", s.authMiddleware(s.listChats)).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/{chatId}", s.authMiddleware(s.getChat)).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/{chatId}", s.authMiddleware(s.updateChat)).Methods(http.MethodPut)
	r.HandleFunc("/api/chat/{chatId}", s.authMiddleware(s.deleteChat)).Methods(http.MethodDelete)
	r.HandleFunc("/api/chat/{chatId}/participants", s.authMiddleware(s.listParticipants)).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/{chatId}/participants", s.authMiddleware(s.addParticipant)).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/{chatId}/participants/{userId}", s.authMiddleware(s.removeParticipant)).Methods(http.MethodDelete)
	r.HandleFunc("/api/chat/{chatId}/read", s.authMiddleware(s.markAsRead)).Methods(http.MethodPut)
	r.HandleFunc("/api/chat/{chatId}/pin", s.authMiddleware(s.togglePin)).Methods(http.MethodPut)
	r.HandleFunc("/api/chat/{chatId}/archive", s.authMiddleware(s.toggleArchive)).Methods(http.MethodPut)

	r.HandleFunc("/api/message/send", s.authMiddleware(s.sendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/api/message/receive/{chatId}", s.authMiddleware(s.getMessages)).Methods(http.MethodGet)
	r.HandleFunc("/api/message/markAsRead/{chatId}", s.authMiddleware(s.markAsRead)).Methods(http.MethodGet)
	r.HandleFunc("/api/message/{chatId}/{messageId}", s.authMiddleware(s.deleteMessage)).Methods(http.MethodDelete)

	r.HandleFunc("/api/status/update", s.authMiddleware(s.updateStatus)).Methods(http.MethodPut)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.authMiddleware(s.serveWs)).Methods(http.MethodGet)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(r)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *ChatSyncApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *ChatSyncApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

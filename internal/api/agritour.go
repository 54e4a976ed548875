package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/chat"
	"github.com/npezzotti/go-agritour/internal/config"
	"github.com/npezzotti/go-agritour/internal/coordinator"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/mailer"
	"github.com/npezzotti/go-agritour/internal/server"
	"golang.org/x/time/rate"
)

// Services are the domain components the HTTP handlers call into.
type Services struct {
	Hub       *server.Hub
	Catalog   *listing.Catalog
	Publisher *listing.Publisher
	Bookings  *booking.Service
	Chats     *chat.Service
	Blobs     blob.Store
	Mailer    mailer.Mailer
}

type AgriTourApp struct {
	log            *log.Logger
	db             database.AgriTourRepository
	mux            *http.Server
	svc            Services
	signingKey     []byte
	allowedOrigins []string
	baseURL        string
	validate       *validator.Validate
	authLimiter    *ipRateLimiter
	now            func() time.Time
	// serverCtx parents every websocket session and is cancelled on
	// shutdown.
	serverCtx    context.Context
	stopSessions context.CancelFunc
}

func NewAgriTourApp(mux *http.ServeMux, logger *log.Logger, db database.AgriTourRepository, svc Services, cfg *config.Config) *AgriTourApp {
	s := &AgriTourApp{
		log:            logger,
		db:             db,
		svc:            svc,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		baseURL:        cfg.BaseURL,
		validate:       validator.New(),
		authLimiter:    newIpRateLimiter(rate.Every(time.Minute/authRequestsPerMinute), authBurst),
		now:            time.Now,
	}
	s.serverCtx, s.stopSessions = context.WithCancel(context.Background())

	mux.HandleFunc("GET /healthz", s.healthCheck)

	mux.HandleFunc("POST /api/auth/register", s.rateLimit(s.createAccount))
	mux.HandleFunc("POST /api/auth/login", s.rateLimit(s.login))
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/auth/password-reset", s.rateLimit(s.requestPasswordReset))
	mux.HandleFunc("POST /api/auth/password-reset/confirm", s.rateLimit(s.confirmPasswordReset))

	mux.HandleFunc("/api/account", s.authMiddleware(s.account))
	mux.HandleFunc("POST /api/account/avatar", s.authMiddleware(s.uploadAvatar))
	mux.HandleFunc("GET /api/users/{id}", s.authMiddleware(s.getUser))

	mux.HandleFunc("GET /api/farms", s.listFarms)
	mux.HandleFunc("GET /api/farms/top", s.topFarms)
	mux.HandleFunc("GET /api/farms/options", s.farmOptions)
	mux.HandleFunc("GET /api/farms/mine", s.authMiddleware(s.myFarms))
	mux.HandleFunc("GET /api/farms/{id}", s.getFarm)
	mux.HandleFunc("POST /api/farms", s.authMiddleware(s.createFarm))

	mux.HandleFunc("POST /api/bookings", s.authMiddleware(s.createBooking))
	mux.HandleFunc("GET /api/bookings", s.authMiddleware(s.myBookings))
	mux.HandleFunc("GET /api/bookings/incoming", s.authMiddleware(s.incomingBookings))
	mux.HandleFunc("GET /api/bookings/revenue", s.authMiddleware(s.revenue))
	mux.HandleFunc("GET /api/bookings/{id}", s.authMiddleware(s.getBooking))
	mux.HandleFunc("POST /api/bookings/{id}/cancel", s.authMiddleware(s.cancelBooking))

	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.listConversations))
	mux.HandleFunc("GET /api/chats/{peer}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/chats/{peer}/messages", s.authMiddleware(s.sendMessage))

	mux.HandleFunc("GET /api/blobs/{id}", s.getBlob)

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// sessionDeps wires a websocket session to the shared services.
func (s *AgriTourApp) sessionDeps() coordinator.Deps {
	return coordinator.Deps{
		Log:       s.log,
		Accounts:  s.db,
		Catalog:   s.svc.Catalog,
		Publisher: s.svc.Publisher,
		Bookings:  s.svc.Bookings,
		Chats:     s.svc.Chats,
	}
}

func (s *AgriTourApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *AgriTourApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	defer s.stopSessions()
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

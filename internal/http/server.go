package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"sac-backend-go/internal/config"
	"sac-backend-go/internal/services"
)

type Server struct {
	DB         *sqlx.DB
	Config     config.Config
	Tokens     services.TokenService
	Accounts   *services.Accounts
	Gate       services.Gate
	Media      *services.MediaStore
	Uploads    services.Dispatcher
	UploadHub  *services.Hub
	MetricsHub *services.Hub
	Validate   *validator.Validate
	Logger     *zap.Logger
}

// Deps are the collaborators built in main and shared with workers.
type Deps struct {
	Accounts   *services.Accounts
	Media      *services.MediaStore
	Uploads    services.Dispatcher
	UploadHub  *services.Hub
	MetricsHub *services.Hub
	Logger     *zap.Logger
}

func NewServer(db *sqlx.DB, cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		DB:         db,
		Config:     cfg,
		Tokens:     services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Accounts:   deps.Accounts,
		Gate:       services.Gate{DB: db},
		Media:      deps.Media,
		Uploads:    deps.Uploads,
		UploadHub:  deps.UploadHub,
		MetricsHub: deps.MetricsHub,
		Validate:   NewValidator(),
		Logger:     logger,
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.logger()))
	r.Use(middleware.Recoverer)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Upload-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Websocket upgrades stay outside the compressing group.
	r.Get("/ws/metrics", s.MetricsSocket)
	r.Get("/ws/uploads", s.UploadsSocket)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Compress(5))
		auth := WithAuth(s.Tokens)

		api.Get("/healthz", s.Health)

		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", s.Register)
			a.Post("/login", s.Login)
			a.Post("/reverify", s.Reverify)
			a.Get("/verify/{token}", s.Verify)
			a.With(auth).Get("/whoami", s.Whoami)
		})

		api.Route("/media", func(m chi.Router) {
			m.Post("/upload", s.Upload)
			m.Get("/view", s.ViewMedia)
			m.Get("/attachment", s.Attachment)
		})

		api.Route("/club", func(c chi.Router) {
			c.Get("/list", s.ListClubs)
			c.Get("/get_full", s.GetClubFull)
			c.Group(func(c chi.Router) {
				c.Use(auth)
				c.Get("/list_my", s.ListMyClubs)
				c.Get("/list_my_applied", s.ListMyApplications)
				c.With(s.RequireAdmin).Post("/create", s.CreateClub)
				c.Post("/update", s.UpdateClub)
				c.Post("/join", s.JoinClub)
				c.Get("/view_applications", s.ViewApplications)
				c.Post("/accept_application", s.AcceptApplication)
			})
		})

		api.Route("/council", func(c chi.Router) {
			c.Get("/list", s.ListCouncils)
			c.With(auth, s.RequireAdmin).Post("/create", s.CreateCouncil)
			c.With(auth, s.RequireAdmin).Post("/update", s.UpdateCouncil)
		})

		api.Route("/announcements", func(a chi.Router) {
			a.Get("/public", s.PublicAnnouncements)
			a.With(auth).Post("/create", s.CreateAnnouncement)
		})

		api.Route("/events", func(e chi.Router) {
			e.Get("/view", s.ListEvents)
			e.With(auth).Post("/create", s.CreateEvent)
		})

		api.Route("/forum", func(f chi.Router) {
			f.Get("/threads", s.ListThreads)
			f.Get("/comments", s.ListComments)
			f.Group(func(f chi.Router) {
				f.Use(auth)
				f.Post("/threads/new", s.CreateThread)
				f.Post("/threads/like", s.LikeThread)
				f.Post("/comments/new", s.CreateComment)
				f.Post("/comments/like", s.LikeComment)
			})
		})

		api.Route("/grievance", func(g chi.Router) {
			g.Post("/create", s.CreateGrievance)
			g.With(auth, s.RequireAdmin).Get("/list", s.ListGrievances)
		})

		api.Get("/transportation/bus_from", s.BusFrom)

		api.With(auth, s.RequireAdmin).Get("/admin/metrics/history", s.MetricsHistory)
	})
	return r
}

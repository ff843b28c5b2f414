package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/p2p-lanes/MuOS-API/internal/application/auth"
	"github.com/p2p-lanes/MuOS-API/internal/application/citizen"
	"github.com/p2p-lanes/MuOS-API/internal/application/cluster"
	"github.com/p2p-lanes/MuOS-API/internal/application/code"
	"github.com/p2p-lanes/MuOS-API/internal/config"
	"github.com/p2p-lanes/MuOS-API/internal/infrastructure/dynamo"
	jwtinfra "github.com/p2p-lanes/MuOS-API/internal/infrastructure/jwt"
	"github.com/p2p-lanes/MuOS-API/internal/infrastructure/smtp"
	"github.com/p2p-lanes/MuOS-API/internal/infrastructure/sns"
	"github.com/p2p-lanes/MuOS-API/internal/lock"
	"github.com/p2p-lanes/MuOS-API/internal/transport/http/handler"
	appmiddleware "github.com/p2p-lanes/MuOS-API/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CitizenRepo     *dynamo.CitizenRepo
	CodeRepo        *dynamo.CodeRepo
	LinkRequestRepo *dynamo.LinkRequestRepo
	ClusterRepo     *dynamo.ClusterRepo
	LockRepo        *dynamo.LockRepo
	AppRepo         *dynamo.ThirdPartyAppRepo
	EmailLogRepo    *dynamo.EmailLogRepo
	Mailer          smtp.Mailer
	SMSSender       sns.SMSSender
	JWTProvider     *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	coordinator := lock.NewCoordinator(deps.LockRepo, cfg.LockLease, cfg.LockAcquire)

	codeSvc := code.NewService(deps.CodeRepo, cfg.CodeTTL)
	citizenSvc := citizen.NewService(deps.CitizenRepo)
	authSvc := auth.NewService(auth.ServiceDeps{
		Codes:       codeSvc,
		CitizenRepo: deps.CitizenRepo,
		AppRepo:     deps.AppRepo,
		EmailLogs:   deps.EmailLogRepo,
		Mailer:      deps.Mailer,
		SMSSender:   deps.SMSSender,
		JWTProvider: deps.JWTProvider,
	})
	clusterSvc := cluster.NewService(cluster.ServiceDeps{
		MemberRepo:  deps.ClusterRepo,
		RequestRepo: deps.LinkRequestRepo,
		CitizenRepo: deps.CitizenRepo,
		EmailLogs:   deps.EmailLogRepo,
		Codes:       codeSvc,
		Mailer:      deps.Mailer,
		Locks:       coordinator,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	citizenH := handler.NewCitizenHandler(citizenSvc)
	clusterH := handler.NewClusterHandler(clusterSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/citizens/signup", citizenH.Signup)
		r.With(sensitiveRL.Limit).Post("/citizens/authenticate-third-party", authH.AuthenticateThirdParty)
		r.With(sensitiveRL.Limit).Post("/citizens/login", authH.Login)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/citizens", citizenH.List)
			r.Get("/citizens/{id}", citizenH.Get)
			r.Put("/citizens/{id}", citizenH.Update)

			r.With(sensitiveRL.Limit).Post("/account-clusters/initiate", clusterH.Initiate)
			r.Post("/account-clusters/verify", clusterH.Verify)
			r.Get("/account-clusters/my-cluster", clusterH.GetMine)
			r.Delete("/account-clusters/leave", clusterH.Leave)
		})
	})

	return r
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linkfolio-api/internal/application/auth"
	"github.com/linkfolio-api/internal/application/dispatch"
	userapp "github.com/linkfolio-api/internal/application/user"
	"github.com/linkfolio-api/internal/config"
	"github.com/linkfolio-api/internal/infrastructure/dynamo"
	googleinfra "github.com/linkfolio-api/internal/infrastructure/google"
	jwtinfra "github.com/linkfolio-api/internal/infrastructure/jwt"
	"github.com/linkfolio-api/internal/transport/http/handler"
	appmiddleware "github.com/linkfolio-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	VerificationRepo *dynamo.VerificationRepo
	OTPSessionRepo   *dynamo.OTPSessionRepo
	Dispatcher       dispatch.Dispatcher
	JWTProvider      *jwtinfra.Provider
	GoogleVerifier   *googleinfra.Verifier
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:         deps.UserRepo,
		VerificationRepo: deps.VerificationRepo,
		OTPSessionRepo:   deps.OTPSessionRepo,
		Dispatcher:       deps.Dispatcher,
		Tokens:           deps.JWTProvider,
		GoogleVerifier:   googleVerifierOrNil(deps.GoogleVerifier),
		OTPTTL:           cfg.OTPTTL,
		PreAuthTTL:       cfg.PreAuthTokenTTL,
		AttemptLimit:     cfg.OTPAttemptLimit,
		DeviceTrustTTL:   cfg.DeviceTrustTTL,
	})
	userSvc := userapp.NewService(userapp.ServiceDeps{
		UserRepo:         deps.UserRepo,
		VerificationRepo: deps.VerificationRepo,
	})

	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	healthH := handler.NewHealthHandler()

	// 5 requests/second, burst of 10 — applied to the public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	r.Get("/health-check", healthH.Ping)

	r.Route("/auth", func(r chi.Router) {
		r.Use(sensitiveRL.Limit)
		r.Post("/signup", authH.Signup)
		r.Post("/verify-otp", authH.VerifyOTP)
		r.Post("/resend-otp", authH.ResendOTP)
		r.Post("/login", authH.Login)
		r.Post("/google", authH.GoogleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(deps.JWTProvider))

		r.Get("/users/me", userH.GetMe)
		r.Post("/users/me/change-password", userH.ChangePassword)
		r.Delete("/users/me", userH.DeleteMe)
	})

	return r
}

// googleVerifierOrNil keeps a typed-nil *Verifier from masquerading as a
// non-nil interface inside the auth service.
func googleVerifierOrNil(v *googleinfra.Verifier) auth.GoogleVerifier {
	if v == nil {
		return nil
	}
	return v
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger      *slog.Logger
	Tokens      middleware.TokenVerifier
	AuthLimiter middleware.RateLimiter
	Health      HealthChecker
	CORSOrigins []string
	UploadDir   string

	Users         UserService
	Videos        VideoService
	Comments      CommentService
	Tweets        TweetService
	Likes         LikeService
	Subscriptions SubscriptionService
	Playlists     PlaylistService
	Dashboard     DashboardService
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	users := UserHandler{Users: deps.Users, UploadDir: deps.UploadDir}
	videos := VideoHandler{Videos: deps.Videos, UploadDir: deps.UploadDir}
	comments := CommentHandler{Comments: deps.Comments}
	tweets := TweetHandler{Tweets: deps.Tweets}
	likes := LikeHandler{Likes: deps.Likes}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions}
	playlists := PlaylistHandler{Playlists: deps.Playlists}
	dashboard := DashboardHandler{Dashboard: deps.Dashboard}

	requireAuth := middleware.Authenticate(deps.Tokens, writeError)
	optionalAuth := middleware.OptionalAuth(deps.Tokens, writeError)
	limitAuth := middleware.RateLimit(deps.AuthLimiter, "auth", writeError)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.E(apperr.NotFound, "handlers.route", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusMethodNotAllowed, nil, "method not allowed")
	})

	r.Get("/healthz", HealthHandler{Store: deps.Health}.Handle)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthcheck", HealthHandler{Store: deps.Health}.Handle)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limitAuth)
				r.Post("/register", users.Register)
				r.Post("/login", users.Login)
				r.Post("/refresh-token", users.Refresh)
			})
			r.With(optionalAuth).Get("/c/{username}", users.Channel)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", users.Logout)
				r.Post("/change-password", users.ChangePassword)
				r.Get("/current-user", users.Current)
				r.Patch("/update-account", users.UpdateAccount)
				r.Patch("/avatar", users.UpdateAvatar)
				r.Patch("/cover-image", users.UpdateCover)
				r.Get("/history", users.History)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.With(optionalAuth).Get("/", videos.Feed)
			r.With(optionalAuth).Get("/{videoId}", videos.Get)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", videos.Publish)
				r.Patch("/{videoId}", videos.Update)
				r.Delete("/{videoId}", videos.Delete)
				r.Patch("/toggle/publish/{videoId}", videos.TogglePublish)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(optionalAuth).Get("/{videoId}", comments.List)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/{videoId}", comments.Add)
				r.Patch("/c/{commentId}", comments.Update)
				r.Delete("/c/{commentId}", comments.Delete)
			})
		})

		r.Route("/tweets", func(r chi.Router) {
			r.With(optionalAuth).Get("/user/{userId}", tweets.ListByUser)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", tweets.Create)
				r.Patch("/{tweetId}", tweets.Update)
				r.Delete("/{tweetId}", tweets.Delete)
			})
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/toggle/v/{videoId}", likes.ToggleVideo)
			r.Post("/toggle/c/{commentId}", likes.ToggleComment)
			r.Post("/toggle/t/{tweetId}", likes.ToggleTweet)
			r.Get("/videos", likes.LikedVideos)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/c/{channelId}", subscriptions.Subscribers)
			r.Get("/u/{subscriberId}", subscriptions.SubscribedTo)
			r.With(requireAuth).Post("/c/{channelId}", subscriptions.Toggle)
		})

		r.Route("/playlist", func(r chi.Router) {
			r.Get("/{playlistId}", playlists.Get)
			r.Get("/user/{userId}", playlists.ListByUser)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", playlists.Create)
				r.Patch("/{playlistId}", playlists.Update)
				r.Delete("/{playlistId}", playlists.Delete)
				r.Patch("/add/{videoId}/{playlistId}", playlists.AddVideo)
				r.Patch("/remove/{videoId}/{playlistId}", playlists.RemoveVideo)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/stats", dashboard.Stats)
			r.Get("/videos", dashboard.Videos)
		})
	})

	return r
}

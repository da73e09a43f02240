package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api/recovery"
	"github.com/thomasnguyen/corgi-quest/internal/auth"
	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/metrics"
	"github.com/thomasnguyen/corgi-quest/internal/services"
)

// Deps is everything the HTTP surface needs; run.go builds it.
type Deps struct {
	Households      *services.HouseholdService
	Dogs            *services.DogService
	Activities      *services.ActivityService
	Goals           *services.GoalService
	Streaks         *services.StreakService
	Moods           *services.MoodService
	Cosmetics       *services.CosmeticService
	Recommendations *services.RecommendationService
	Voice           *services.VoiceService

	Issuer         *auth.Issuer
	Bus            *events.Bus
	Health         HealthStatus
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter registers every route and wraps the mux with CORS.
func NewRouter(d Deps) http.Handler {
	root := mux.NewRouter()
	root.Use(recovery.Middleware(d.Log))
	root.Use(requestLogger(d.Log))

	healthHandler := NewHealthHandler(d.Health)
	householdHandler := NewHouseholdHandler(d.Households, d.Dogs, d.Issuer, d.Log)
	activityHandler := NewActivityHandler(d.Activities, d.Log)
	progressHandler := NewProgressHandler(d.Goals, d.Streaks, d.Moods, d.Log)
	cosmeticHandler := NewCosmeticHandler(d.Cosmetics, d.Log)
	assistantHandler := NewAssistantHandler(d.Recommendations, d.Voice, d.Log)
	liveHandler := NewLiveHandler(d.Bus, d.AllowedOrigins, d.Log)

	// Public endpoints
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	root.Handle("/metrics", metrics.Handler()).Methods("GET")
	root.HandleFunc("/api/activity-catalog", activityHandler.GetActivityCatalog).Methods("GET")
	root.HandleFunc("/api/households", householdHandler.CreateHousehold).Methods("POST")
	root.HandleFunc("/api/households/join", householdHandler.JoinHousehold).Methods("POST")

	// Member endpoints; the token must belong to {householdId}
	hh := root.PathPrefix("/api/households/{householdId}").Subrouter()
	hh.Use(requireMember(d.Issuer))

	hh.HandleFunc("", householdHandler.GetHousehold).Methods("GET")

	hh.HandleFunc("/activities", activityHandler.ListActivities).Methods("GET")
	hh.HandleFunc("/activities", activityHandler.LogActivity).Methods("POST")
	hh.HandleFunc("/activities/catalog", activityHandler.LogCatalogActivity).Methods("POST")
	hh.HandleFunc("/activities/{activityId}", activityHandler.DeleteActivity).Methods("DELETE")

	hh.HandleFunc("/goals/today", progressHandler.GetTodayGoal).Methods("GET")
	hh.HandleFunc("/goals/today", progressHandler.UpdateTodayGoal).Methods("PUT")
	hh.HandleFunc("/streak", progressHandler.GetStreak).Methods("GET")
	hh.HandleFunc("/moods", progressHandler.ListMoods).Methods("GET")
	hh.HandleFunc("/moods", progressHandler.LogMood).Methods("POST")

	hh.HandleFunc("/cosmetics", cosmeticHandler.ListCosmetics).Methods("GET")
	hh.HandleFunc("/cosmetics/equipped", cosmeticHandler.Equip).Methods("PUT")
	hh.HandleFunc("/cosmetics/equipped", cosmeticHandler.Unequip).Methods("DELETE")

	hh.HandleFunc("/recommendations/weekly", assistantHandler.WeeklyRecommendations).Methods("POST")
	hh.HandleFunc("/voice/parse", assistantHandler.ParseVoice).Methods("POST")
	hh.HandleFunc("/voice/token", assistantHandler.MintVoiceToken).Methods("POST")

	hh.HandleFunc("/live", liveHandler.Serve).Methods("GET")

	return cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	}).Handler(root)
}

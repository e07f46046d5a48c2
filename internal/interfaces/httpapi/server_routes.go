package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerGameRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/games/save", handler.SaveGame)
	mux.HandleFunc("POST /v1/games/save-batch", handler.SaveGameBatch)
	mux.HandleFunc("POST /v1/games/upload", handler.UploadGame)
}

func registerScraperRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/scraper/jobs", handler.StartScraperJob)
	mux.HandleFunc("GET /v1/scraper/jobs", handler.ListScraperJobs)
	mux.HandleFunc("GET /v1/scraper/jobs/{jobID}", handler.GetScraperJob)
	mux.HandleFunc("POST /v1/scraper/jobs/{jobID}/cancel", handler.CancelScraperJob)
	mux.HandleFunc("GET /v1/scraper/metrics", handler.GetScraperMetrics)
}

func registerScrapeURLRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/scrape-urls", handler.SearchScrapeURLs)
	mux.HandleFunc("GET /v1/scrape-urls/update-candidates", handler.ListUpdateCandidateURLs)
	mux.HandleFunc("GET /v1/scrape-urls/details", handler.GetScrapeURLDetails)
	mux.HandleFunc("PATCH /v1/scrape-urls/status", handler.ModifyScrapeURLStatus)
	mux.HandleFunc("PATCH /v1/scrape-urls/bulk", handler.BulkModifyScrapeURLs)
}

func registerEntityRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/entities/{entityID}/tournament-ids/bounds", handler.GetTournamentIDBounds)
	mux.HandleFunc("GET /v1/entities/{entityID}/tournament-ids/gaps", handler.FindTournamentIDGaps)
	mux.HandleFunc("GET /v1/entities/{entityID}/tournament-ids", handler.ListExistingTournamentIDs)
	mux.HandleFunc("GET /v1/entities/{entityID}/scraping-status", handler.GetEntityScrapingStatus)
	mux.HandleFunc("GET /v1/entities/{entityID}/games/unfinished", handler.ListUnfinishedGames)
}

func registerRecurringRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/recurring/re-resolve-game", handler.ReResolveRecurringGame)
	mux.HandleFunc("POST /v1/recurring/re-resolve-venue", handler.ReResolveVenueGames)
	mux.HandleFunc("POST /v1/recurring/find-duplicates", handler.FindDuplicateRecurringGames)
	mux.HandleFunc("POST /v1/recurring/merge-duplicates", handler.MergeDuplicateRecurringGames)
	mux.HandleFunc("GET /v1/recurring/stats", handler.GetRecurringGameStats)
	mux.HandleFunc("POST /v1/recurring/cleanup-orphans", handler.CleanupOrphanRecurringGames)
	mux.HandleFunc("POST /v1/recurring/bootstrap", handler.BootstrapRecurringGames)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/scraper-run", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunScraperJob)))
	mux.Handle("POST /v1/internal/jobs/scheduled", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunScheduledScrape)))
}

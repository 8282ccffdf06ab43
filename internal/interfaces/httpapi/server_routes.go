package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /api/kv/health", handler.KVHealth)
}

func registerParseRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /api/parse-matchups", handler.ParseMatchups)
}

func registerHistoryRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /api/history", handler.ListHistory)
	mux.HandleFunc("GET /api/history/{entryID}", handler.GetHistoryEntry)
	mux.HandleFunc("DELETE /api/history/{entryID}", handler.DeleteHistoryEntry)
	mux.HandleFunc("DELETE /api/weeks/{week}/history", handler.ClearWeekHistory)
}

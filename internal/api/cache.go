package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// cacheEntryResponse reports whether a record key is marked as cached.
type cacheEntryResponse struct {
	Key    string `json:"key"`
	Cached bool   `json:"cached"`
}

func (s *Server) handleGetCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	writeJSON(w, http.StatusOK, cacheEntryResponse{Key: key, Cached: s.store.IsCached(key)})
}

func (s *Server) handleMarkCached(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.store.MarkAsCached(key)
	writeJSON(w, http.StatusOK, cacheEntryResponse{Key: key, Cached: true})
}

func (s *Server) handleRemoveCached(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.store.RemoveFromCache(key)
	writeJSON(w, http.StatusOK, cacheEntryResponse{Key: key, Cached: false})
}

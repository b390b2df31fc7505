package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/feed"
)

// FeedSyncer is the subscribed-feed runner.
type FeedSyncer interface {
	Statuses() []feed.Status
	SyncAll(ctx context.Context) []feed.Status
}

// FeedsResponse is the result of GET /api/feeds and POST /api/feeds/sync.
type FeedsResponse struct {
	Feeds []feed.Status `json:"feeds"`
}

// MountFeeds adds the feed routes to r.
func MountFeeds(r chi.Router, feeds FeedSyncer) {
	h := &feedsHandler{feeds: feeds}
	r.Get("/feeds", h.List)
	r.Post("/feeds/sync", h.Sync)
}

type feedsHandler struct {
	feeds FeedSyncer
}

// List handles GET /api/feeds.
//
//	@Summary		Latest sync outcome per subscribed feed
//	@Tags			feeds
//	@Produce		json
//	@Success		200	{object}	FeedsResponse
//	@Security		BearerAuth
//	@Router			/feeds [get]
func (h *feedsHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FeedsResponse{Feeds: h.feeds.Statuses()})
}

// Sync handles POST /api/feeds/sync.
//
//	@Summary		Import every subscribed feed now
//	@Tags			feeds
//	@Produce		json
//	@Success		200	{object}	FeedsResponse
//	@Security		BearerAuth
//	@Router			/feeds/sync [post]
func (h *feedsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FeedsResponse{Feeds: h.feeds.SyncAll(r.Context())})
}

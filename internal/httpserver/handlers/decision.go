package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/gate"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/logger"
)

const streamKeepAlive = 25 * time.Second

// Decision answers which view a product page should render.
func Decision(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gate.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		decision, err := d.Gate.Decide(r.Context(), req)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

// DecisionStream pushes a new decision as server-sent events every time
// the store changes in a way that alters it. The page is described by the
// query string: marketplace, productId, tabId, and optionally the observed
// name, price, image and url.
func DecisionStream(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := streamRequest(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// The stream outlives the server-wide write timeout.
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			d.Logger.Debug("cannot clear write deadline", logger.Error(err))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx := r.Context()
		events := make(chan gate.Decision, 1)
		done := make(chan error, 1)
		go func() {
			done <- d.Gate.Watch(ctx, d.Notifier, req, func(dec gate.Decision) error {
				select {
				case events <- dec:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		log := d.Logger.With(logger.TabID(req.TabID))
		log.Debug("decision stream opened")
		for {
			select {
			case dec := <-events:
				data, err := json.Marshal(dec)
				if err != nil {
					log.Error("failed to encode decision", logger.Error(err))
					return
				}
				if _, err := fmt.Fprintf(w, "event: decision\ndata: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()

			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()

			case err := <-done:
				if err != nil {
					log.Warn("decision stream ended", logger.Error(err))
					_, _ = fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
					flusher.Flush()
				}
				return

			case <-ctx.Done():
				log.Debug("decision stream closed by client")
				return
			}
		}
	}
}

func streamRequest(r *http.Request) (gate.Request, error) {
	q := r.URL.Query()
	req := gate.Request{
		Marketplace: q.Get("marketplace"),
		ProductID:   q.Get("productId"),
		TabID:       q.Get("tabId"),
		Observed: domain.Product{
			Name:  q.Get("name"),
			Price: q.Get("price"),
			Image: q.Get("image"),
			URL:   q.Get("url"),
		},
	}
	if req.Marketplace == "" || req.ProductID == "" {
		return gate.Request{}, fmt.Errorf("%w: marketplace and productId are required", errBadRequest)
	}
	return req, nil
}

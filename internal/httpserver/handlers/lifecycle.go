package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
)

type productActionRequest struct {
	Product    domain.Product `json:"product"`
	ReminderID string         `json:"reminderId,omitempty"`
}

type sleepOnItRequest struct {
	Product    domain.Product `json:"product"`
	DurationMs int64          `json:"durationMs"`
	TabID      string         `json:"tabId,omitempty"`
}

type keyActionRequest struct {
	ProductKey string `json:"productKey"`
	ReminderID string `json:"reminderId,omitempty"`
}

type productResponse struct {
	Product domain.Product `json:"product"`
}

type reminderResponse struct {
	ReminderID string          `json:"reminderId"`
	Reminder   domain.Reminder `json:"reminder"`
}

// DontNeedIt records that the user does not need the product.
func DontNeedIt(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		product, err := supportedProduct(d, req.Product)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		p, err := d.Lifecycle.DontNeedIt(r.Context(), product, req.ReminderID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, productResponse{Product: p})
	}
}

// SleepOnIt defers the decision and arms a reminder.
func SleepOnIt(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sleepOnItRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		product, err := supportedProduct(d, req.Product)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		duration := time.Duration(req.DurationMs) * time.Millisecond
		rem, err := d.Lifecycle.SleepOnIt(r.Context(), product, duration, req.TabID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, reminderResponse{ReminderID: rem.ID, Reminder: rem})
	}
}

// NeedIt records that the user needs the product after all.
func NeedIt(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeKeyAction(w, r, d)
		if !ok {
			return
		}

		p, err := d.Lifecycle.NeedIt(r.Context(), req.ProductKey, req.ReminderID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, productResponse{Product: p})
	}
}

// ChangedMyMind puts the product back to neutral.
func ChangedMyMind(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeKeyAction(w, r, d)
		if !ok {
			return
		}

		p, err := d.Lifecycle.ChangedMyMind(r.Context(), req.ProductKey, req.ReminderID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, productResponse{Product: p})
	}
}

func decodeKeyAction(w http.ResponseWriter, r *http.Request, d deps.Deps) (keyActionRequest, bool) {
	var req keyActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, d.Logger, err)
		return req, false
	}
	m, id, ok := domain.SplitProductKey(req.ProductKey)
	if !ok {
		writeError(w, d.Logger, fmt.Errorf("%w: malformed product key %q", domain.ErrInvalidProduct, req.ProductKey))
		return req, false
	}
	p, err := d.Marketplaces.Extract(m, id, domain.Product{})
	if err != nil {
		writeError(w, d.Logger, err)
		return req, false
	}
	req.ProductKey = p.Key
	return req, true
}

// supportedProduct rejects products of marketplaces the registry does not
// know, and canonicalizes identity the way the decision endpoint does.
func supportedProduct(d deps.Deps, observed domain.Product) (domain.Product, error) {
	if err := observed.Validate(); err != nil {
		return domain.Product{}, err
	}
	return d.Marketplaces.Extract(observed.Marketplace, observed.MarketplaceProductID, observed)
}

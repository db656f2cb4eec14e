package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/howard-nolan/polishgw/internal/completion"
	"github.com/howard-nolan/polishgw/internal/parse"
	"github.com/howard-nolan/polishgw/internal/provider"
)

// genericErrorMessage is what callers see for anything we didn't classify.
// The real cause goes to the log, never over the wire.
const genericErrorMessage = "service temporarily unavailable, retry later"

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// polishRequest is the incoming request body. Everything except input is
// optional at this layer — which fields are actually required depends on
// the provider name, and the resolver decides that.
type polishRequest struct {
	Input    string `json:"input"`
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	APIURL   string `json:"apiUrl"`
	Model    string `json:"model"`
	DeviceID string `json:"deviceId"`
}

// usageInfo is the response-facing quota snapshot. It's derived per
// request, never stored. Remaining is floored at 0 — the stored count can
// legitimately pass the limit (concurrent last-slot requests), but we
// never show a negative number.
type usageInfo struct {
	UsageCount int64 `json:"usageCount"`
	Remaining  int64 `json:"remaining"`
	IsFree     bool  `json:"isFree"`
}

// polishResponse is the success envelope. UsageInfo is null for requests
// on the caller's own key (nothing to meter).
type polishResponse struct {
	Standard   string     `json:"standard"`
	DataDriven string     `json:"datadriven"`
	Expert     string     `json:"expert"`
	UsageInfo  *usageInfo `json:"usageInfo"`
}

// errorResponse is the error envelope. UsageInfo rides along when it was
// already computed, so the client can render remaining quota even on
// failure.
type errorResponse struct {
	Error     string     `json:"error"`
	UsageInfo *usageInfo `json:"usageInfo,omitempty"`
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// handlePolish handles POST /v1/polish. The flow per request:
//
//  1. Validate the input text.
//  2. Free tier only: look up the device's usage and gate on the limit —
//     an exhausted device is refused before any upstream call, so it
//     can't consume anything.
//  3. Resolve the provider name + credentials into an endpoint.
//  4. Call the upstream (single attempt).
//  5. Parse the three-variant result out of the raw reply.
//  6. Free tier only: count the successful call, and reflect the +1 in
//     the returned snapshot optimistically — the user got their result,
//     so the response claims the slot even if the durable increment
//     fails (that failure is logged, not surfaced).
//  7. Respond 200 with the variants and the snapshot.
//
// Tracking is the only fail-open path. Everything else maps to a specific
// status via the error envelope.
func (s *Server) handlePolish(w http.ResponseWriter, r *http.Request) {
	var req polishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	// Step 1: Validate. Whitespace-only input is as useless as empty.
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "invalid input: work description required", nil)
		return
	}

	isFree := provider.IsFree(req.Provider)

	// Step 2: Quota gate, free tier only.
	var info *usageInfo
	if isFree {
		if req.DeviceID == "" {
			writeError(w, http.StatusBadRequest, "missing device id", nil)
			return
		}

		count, err := s.store.GetOrCreate(r.Context(), req.DeviceID)
		if err != nil {
			// Fail-open: an unreadable counter must not block the
			// request. count is 0 here, so the device gets through.
			log.Printf("usage tracking error for %s: %v", req.DeviceID, err)
		}

		limit := s.cfg.Free.UsageLimit
		info = &usageInfo{
			UsageCount: count,
			Remaining:  flooredRemaining(limit, count),
			IsFree:     true,
		}

		if count >= limit {
			info.Remaining = 0
			writeError(w, http.StatusForbidden,
				"free quota exhausted, configure your own API key in settings", info)
			return
		}
	}

	// Step 3: Resolve the provider into a concrete endpoint descriptor.
	cfg, err := provider.Resolve(provider.Request{
		Provider: req.Provider,
		APIKey:   req.APIKey,
		APIURL:   req.APIURL,
		Model:    req.Model,
	}, provider.FreeTier{
		APIURL: s.cfg.Free.APIURL,
		Model:  s.cfg.Free.Model,
		APIKey: s.cfg.Free.APIKey,
	})
	if err != nil {
		var verr *provider.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error(), info)
			return
		}
		log.Printf("resolving provider %q: %v", req.Provider, err)
		writeError(w, http.StatusInternalServerError, genericErrorMessage, info)
		return
	}

	log.Printf("polishing input (provider %s, model %s)", cfg.Name, cfg.Model)

	// Step 4: One upstream call. Classified failures keep their status
	// and message; anything else is the generic 500.
	raw, err := s.completer.Complete(r.Context(), cfg, req.Input)
	if err != nil {
		var serr *completion.StatusError
		if errors.As(err, &serr) {
			writeError(w, serr.Status, serr.Message, info)
			return
		}
		log.Printf("completion error (provider %s): %v", cfg.Name, err)
		writeError(w, http.StatusInternalServerError, genericErrorMessage, info)
		return
	}

	// Step 5: Extract the three variants (never fails — degrades to the
	// raw text).
	result := parse.Variants(raw)

	// Step 6: Post-success accounting, free tier only.
	if isFree {
		if err := s.store.Increment(r.Context(), req.DeviceID); err != nil {
			// Best-effort: the user already has their result.
			log.Printf("usage increment error for %s: %v", req.DeviceID, err)
		}
		info.UsageCount++
		info.Remaining = flooredRemaining(s.cfg.Free.UsageLimit, info.UsageCount)
	}

	// Step 7: Respond.
	writeJSON(w, http.StatusOK, polishResponse{
		Standard:   result.Standard,
		DataDriven: result.DataDriven,
		Expert:     result.Expert,
		UsageInfo:  info,
	})
}

// flooredRemaining computes limit − count, clamped at 0 for display.
func flooredRemaining(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope, attaching the usage snapshot when
// one was computed.
func writeError(w http.ResponseWriter, status int, msg string, info *usageInfo) {
	writeJSON(w, status, errorResponse{Error: msg, UsageInfo: info})
}

// Package provider maps a requested provider name plus caller-supplied
// credentials into a concrete upstream endpoint descriptor.
//
// Three provider shapes exist: "free" (server-held key and endpoint,
// metered per device), "openai" (caller's key, fixed endpoint), and
// "custom" (caller's key and base URL). The rest of the gateway works
// with the resolved Config — the completion client never needs to know
// which of the three it is talking to.
package provider

import (
	"fmt"
	"strings"
)

// Provider name constants. Anything else falls back to free — a permissive
// default, matching what old clients with no provider field expect.
const (
	Free   = "free"
	OpenAI = "openai"
	Custom = "custom"
)

// IsFree reports whether a requested provider name resolves to the
// metered free tier. Mirrors Resolve's default branch: only "openai" and
// "custom" escape metering.
func IsFree(name string) bool {
	return name != OpenAI && name != Custom
}

// openaiAPIURL is the fixed chat-completions endpoint for the "openai"
// provider. Callers can't override it — if they want a different host,
// that's what "custom" is for.
const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// defaultOpenAIModel is used when an "openai" request doesn't name a model.
const defaultOpenAIModel = "gpt-4o-mini"

// completionsSuffix is appended to custom base URLs that don't already
// point at a chat-completions path.
const completionsSuffix = "/chat/completions"

// Config is a fully-resolved upstream descriptor. It's built fresh per
// request from the request body plus server config, handed to the
// completion client, and discarded — never persisted.
type Config struct {
	Name   string // which provider shape produced this config
	APIURL string // full chat-completions URL
	APIKey string // bearer token for the upstream call
	Model  string // model to request
}

// FreeTier carries the server-held settings for the free provider.
// It's injected from config at startup so resolution never touches the
// process environment directly.
type FreeTier struct {
	APIURL string
	Model  string
	APIKey string
}

// Request holds the caller-supplied provider fields from the request body.
// All of them are optional at the HTTP layer; Resolve decides which
// combinations are valid for which provider name.
type Request struct {
	Provider string
	APIKey   string
	APIURL   string
	Model    string
}

// ValidationError marks a resolution failure caused by missing caller
// credentials. The handler maps these to a 400 response.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Resolve turns a Request into a concrete Config, or fails with a
// *ValidationError when required caller credentials are missing.
//
// An unknown (or empty) provider name resolves to the free tier rather
// than erroring — being permissive here means a stale client never gets
// locked out, it just gets metered.
func Resolve(req Request, free FreeTier) (*Config, error) {
	switch req.Provider {
	case OpenAI:
		if req.APIKey == "" {
			return nil, &ValidationError{msg: "OpenAI API key required"}
		}
		model := req.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return &Config{
			Name:   OpenAI,
			APIURL: openaiAPIURL,
			APIKey: req.APIKey,
			Model:  model,
		}, nil

	case Custom:
		if req.APIKey == "" || req.APIURL == "" {
			return nil, &ValidationError{msg: "custom API URL and key required"}
		}
		model := req.Model
		if model == "" {
			model = "default"
		}
		return &Config{
			Name:   Custom,
			APIURL: normalizeCustomURL(req.APIURL),
			APIKey: req.APIKey,
			Model:  model,
		}, nil

	default:
		// Free tier — and the fallback for anything unrecognized.
		// Endpoint, model, and key are all server-held; nothing from
		// the request body is trusted except the input text itself.
		return &Config{
			Name:   Free,
			APIURL: free.APIURL,
			APIKey: free.APIKey,
			Model:  free.Model,
		}, nil
	}
}

// normalizeCustomURL makes custom base URLs point at a chat-completions
// path: "https://x.com/v1" and "https://x.com/v1/" both become
// "https://x.com/v1/chat/completions". URLs that already end in the
// suffix pass through untouched.
func normalizeCustomURL(raw string) string {
	if strings.HasSuffix(raw, completionsSuffix) {
		return raw
	}
	return fmt.Sprintf("%s%s", strings.TrimSuffix(raw, "/"), completionsSuffix)
}

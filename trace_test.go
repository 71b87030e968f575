package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestNewTraceID_Format(t *testing.T) {
	assert.Regexp(t, `^notify-[0-9a-f]{8}$`, newTraceID("notify"))
	assert.NotEqual(t, newTraceID("x"), newTraceID("x"))
}

func TestInteractionTraceID(t *testing.T) {
	assert.Equal(t, "cmd-1234567890", interactionTraceID("cmd", &discordgo.Interaction{ID: "1234567890"}))
	assert.Regexp(t, `^component-[0-9a-f]{8}$`, interactionTraceID("component", &discordgo.Interaction{}))
	assert.Regexp(t, `^cmd-[0-9a-f]{8}$`, interactionTraceID("cmd", nil))
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Equal(t, "", traceIDFromContext(context.Background()))
	assert.Equal(t, "", traceIDFromContext(nil)) //nolint:staticcheck
	assert.Equal(t, "cmd-1", traceIDFromContext(withTraceID(context.Background(), "cmd-1")))
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := traceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = traceIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.True(t, strings.HasPrefix(seen, "http-"))
	assert.Equal(t, seen, rec.Header().Get(traceHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(traceHeader, "probe-7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "probe-7", seen)

	req.Header.Set(traceHeader, strings.Repeat("a", 65))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, strings.HasPrefix(seen, "http-"), "oversized ids are replaced")
}

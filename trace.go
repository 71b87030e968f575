package main

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const traceHeader = "X-Trace-Id"

type traceKey struct{}

// newTraceID returns "<kind>-<8 hex>", e.g. "notify-1f2e3d4c".
func newTraceID(kind string) string {
	id := uuid.New()
	return kind + "-" + hex.EncodeToString(id[:4])
}

// interactionTraceID reuses the interaction snowflake so a log line can be
// matched with what the user saw in Discord.
func interactionTraceID(kind string, i *discordgo.Interaction) string {
	if i == nil || i.ID == "" {
		return newTraceID(kind)
	}
	return kind + "-" + i.ID
}

func withTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// traceIDFromContext returns "" when ctx carries no trace.
func traceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(traceKey{}).(string)
	return v
}

// traceMiddleware tags each ops request. A caller-supplied X-Trace-Id is
// kept when it is short enough to log.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(traceHeader)
		if id == "" || len(id) > 64 {
			id = newTraceID("http")
		}
		w.Header().Set(traceHeader, id)
		next.ServeHTTP(w, r.WithContext(withTraceID(r.Context(), id)))
	})
}

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/prepworks/mcat-scheduler/internal/planner"
	"github.com/prepworks/mcat-scheduler/internal/schedule"
)

// wsMessage is one frame of a streamed plan. Day frames arrive in calendar
// order; the final frame carries the metadata and no day.
type wsMessage struct {
	Type     string             `json:"type"` // "day", "complete" or "error"
	Day      *planner.Day       `json:"day,omitempty"`
	Metadata *schedule.Metadata `json:"metadata,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleFullPlanWS streams a plan one day at a time. Long date ranges plan
// hundreds of days against the ledger, so streaming lets clients render
// progressively instead of waiting on one large response.
func (s *Server) handleFullPlanWS(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	gen := schedule.NewGenerator(s.store, schedule.NewScheduleID())

	var streamErr error
	gen.SetObserver(func(day planner.Day) {
		if streamErr != nil {
			return
		}
		streamErr = wsjson.Write(ctx, conn, wsMessage{Type: "day", Day: &day})
	})

	resp, err := gen.Generate(ctx, *req)
	if err != nil {
		slog.Error("plan generation failed", "error", err)
		wsjson.Write(ctx, conn, wsMessage{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "generation failed")
		return
	}
	if streamErr != nil {
		if !errors.Is(streamErr, ctx.Err()) {
			slog.Warn("websocket stream interrupted", "error", streamErr)
		}
		return
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: "complete", Metadata: &resp.Metadata}); err != nil {
		slog.Warn("websocket final frame failed", "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

package rpc

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"

	"archaeologist/internal/analysis"
)

const (
	lifecycleWSWriteWait = 10 * time.Second
	lifecycleWSPongWait  = 60 * time.Second
	lifecycleWSPingEvery = (lifecycleWSPongWait * 9) / 10
)

var lifecycleWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type lifecycleWSInbound struct {
	Type     string `json:"type"`
	SourceID string `json:"sourceId,omitempty"`
}

type lifecycleWSOutbound struct {
	Type     string             `json:"type"`
	RunID    string             `json:"runId,omitempty"`
	PlanID   string             `json:"planId,omitempty"`
	Snapshot *analysis.Snapshot `json:"snapshot,omitempty"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// HandleLifecycleWS streams every lifecycle snapshot to the client and accepts
// start, reset, save and ping commands.
func (h *AnalysisHandler) HandleLifecycleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := lifecycleWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(lifecycleWSPongWait)); err != nil {
		log.Printf("lifecycle ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(lifecycleWSPongWait))
	})

	writeCh := make(chan lifecycleWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(lifecycleWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(lifecycleWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(lifecycleWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	subCh := h.machine.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-subCh:
				if !ok {
					return
				}
				pushLifecycleWS(writeCh, lifecycleWSOutbound{Type: "state", Snapshot: &snap})
			}
		}
	}()

	for {
		var in lifecycleWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "":
			pushLifecycleWS(writeCh, lifecycleWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type is required",
			})
		case "ping":
			pushLifecycleWS(writeCh, lifecycleWSOutbound{Type: "pong"})
		case "start":
			runID, err := h.machine.Start(in.SourceID)
			if err != nil {
				pushLifecycleWS(writeCh, wsError(err))
				continue
			}
			pushLifecycleWS(writeCh, lifecycleWSOutbound{Type: "started", RunID: runID})
		case "reset":
			h.machine.Reset()
			pushLifecycleWS(writeCh, lifecycleWSOutbound{Type: "reset"})
		case "save":
			// The outcome also arrives as a state snapshot; the reply only
			// carries the plan id.
			go func() {
				id, err := h.machine.SavePlan(ctx)
				if err != nil {
					pushLifecycleWS(writeCh, wsError(err))
					return
				}
				pushLifecycleWS(writeCh, lifecycleWSOutbound{Type: "saved", PlanID: id})
			}()
		default:
			pushLifecycleWS(writeCh, lifecycleWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + in.Type,
			})
		}
	}
}

func wsError(err error) lifecycleWSOutbound {
	return lifecycleWSOutbound{
		Type:    "error",
		Code:    connect.CodeOf(toAnalysisError(err)).String(),
		Message: err.Error(),
	}
}

// pushLifecycleWS drops the oldest queued message when the writer falls
// behind. Every state message is a full snapshot, so the next one supersedes
// what was dropped.
func pushLifecycleWS(ch chan lifecycleWSOutbound, out lifecycleWSOutbound) {
	select {
	case ch <- out:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- out:
	default:
	}
}

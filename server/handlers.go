package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"gridmap/controller"
	"gridmap/models"
	"gridmap/server/cell_views"
	"gridmap/server/root_view"

	"github.com/gorilla/mux"
)

// ErrBadRequest wraps request bodies and parameters that cannot be decoded.
var ErrBadRequest = errors.New("bad request")

type coordRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (cr coordRequest) coord() (models.Coord, error) {
	if cr.X == nil || cr.Y == nil {
		return models.Coord{}, fmt.Errorf("%w: x and y are required", ErrBadRequest)
	}
	return models.Coord{X: *cr.X, Y: *cr.Y}, nil
}

type imageRequest struct {
	coordRequest
	Tag string `json:"tag"`
}

type moveResponse struct {
	Command string `json:"command"`
	From    [2]int `json:"from"`
	To      [2]int `json:"to"`
	Heading string `json:"heading"`
	Moved   bool   `json:"moved"`
	Blocked string `json:"blocked"`
}

type textRequest struct {
	Text *string `json:"text"`
}

func (tr textRequest) text() (string, error) {
	if tr.Text == nil {
		return "", fmt.Errorf("%w: text is required", ErrBadRequest)
	}
	return *tr.Text, nil
}

type presetResponse struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func (server *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		server.log.WithError(err).Warn("failed to write response")
	}
}

// writeError maps err to a status: requests the controller can no longer serve are 503,
// a send with no peer linked is 409, everything else is the caller's fault.
func (server *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, controller.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, controller.ErrNoPeer):
		status = http.StatusConflict
	}
	server.log.WithError(err).WithField("status", status).Debug("request failed")
	server.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (server *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveMap returns the outbound message for the current session.
func (server *Server) serveMap(w http.ResponseWriter, r *http.Request) {
	f, err := server.ctrl.Snapshot(r.Context())
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, f.Message)
}

// serveCells returns the map as view cells, [x][y] with north first.
func (server *Server) serveCells(w http.ResponseWriter, r *http.Request) {
	f, err := server.ctrl.Snapshot(r.Context())
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, cell_views.Convert(f.Grid))
}

// serveIndex renders the map page from the current frame. The page then follows the
// session over its own websocket.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := server.ctrl.Snapshot(r.Context())
	if err != nil {
		server.writeError(w, err)
		return
	}

	rv, err := root_view.NewRootView(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page := template.New("index.html")
	name, err := rv.Parse(page, "/view/ws")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err = page.ExecuteTemplate(w, name, cell_views.FromFrame(f)); err != nil {
		server.log.WithError(err).Warn("failed to render index")
	}
}

func (server *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	cmd, err := models.ParseCommand(mux.Vars(r)["command"])
	if err != nil {
		server.writeError(w, err)
		return
	}
	res, err := server.ctrl.Move(r.Context(), cmd)
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, moveResponse{
		Command: res.Command.String(),
		From:    [2]int{res.From.X, res.From.Y},
		To:      [2]int{res.To.X, res.To.Y},
		Heading: res.Heading.String(),
		Moved:   res.Moved,
		Blocked: res.Blocked.String(),
	})
}

// handleCoord adapts a controller operation on one logical coordinate to a handler.
func (server *Server) handleCoord(
	apply func(context.Context, models.Coord) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req coordRequest
		if err := decodeBody(r, &req); err != nil {
			server.writeError(w, err)
			return
		}
		at, err := req.coord()
		if err != nil {
			server.writeError(w, err)
			return
		}
		if err = apply(r.Context(), at); err != nil {
			server.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (server *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeBody(r, &req); err != nil {
		server.writeError(w, err)
		return
	}
	at, err := req.coord()
	if err != nil {
		server.writeError(w, err)
		return
	}
	tag, err := models.ParseTag(req.Tag)
	if err != nil {
		server.writeError(w, err)
		return
	}
	accepted, err := server.ctrl.AddAnnotation(r.Context(), models.Annotation{At: at, Tag: tag})
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

func (server *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := server.ctrl.Reset(r.Context()); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	mode, err := controller.ParseMode(mux.Vars(r)["mode"])
	if err != nil {
		server.writeError(w, err)
		return
	}
	if err = server.ctrl.SetMode(r.Context(), mode); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	applied, err := server.ctrl.Refresh(r.Context())
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// handleSend sends free text to the linked peer.
func (server *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		server.writeError(w, err)
		return
	}
	text, err := req.text()
	if err != nil {
		server.writeError(w, err)
		return
	}
	if err = server.ctrl.Send(r.Context(), text); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) servePreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	text, err := server.ctrl.Preset(r.Context(), name)
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeJSON(w, http.StatusOK, presetResponse{Name: strings.ToUpper(name), Text: text})
}

func (server *Server) handleSetPreset(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		server.writeError(w, err)
		return
	}
	text, err := req.text()
	if err != nil {
		server.writeError(w, err)
		return
	}
	if err = server.ctrl.SetPreset(r.Context(), mux.Vars(r)["name"], text); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleSendPreset(w http.ResponseWriter, r *http.Request) {
	if err := server.ctrl.SendPreset(r.Context(), mux.Vars(r)["name"]); err != nil {
		server.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

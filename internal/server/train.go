package server

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/engine"
)

// handleTrain retrains the index from the multipart field "dataset", or
// from the configured dataset when no file is sent.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var result engine.TrainResult

	err := s.readForm(w, r)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, err)
		return
	}

	var dataset *multipart.FileHeader
	if err == nil {
		if files := r.MultipartForm.File["dataset"]; len(files) > 0 && files[0].Filename != "" {
			dataset = files[0]
		}
	}

	if dataset != nil {
		f, err := dataset.Open()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer f.Close()
		result = s.engine.TrainFrom(r.Context(), dataset.Filename, f, nil)
	} else {
		result = s.engine.Train(r.Context(), "")
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// trainEvent is one message sent over /ws/train.
type trainEvent struct {
	Type    string              `json:"type"` // "start", "progress", "finish" or "result"
	Total   int                 `json:"total,omitempty"`
	Current int                 `json:"current,omitempty"`
	Message string              `json:"message,omitempty"`
	Result  *engine.TrainResult `json:"result,omitempty"`
}

// socketReporter streams training progress to a websocket client.
type socketReporter struct {
	conn *websocket.Conn
	log  *zap.Logger
}

func (r *socketReporter) send(ev trainEvent) {
	if err := r.conn.WriteJSON(ev); err != nil {
		r.log.Debug("websocket write", zap.Error(err))
	}
}

func (r *socketReporter) Start(total int) {
	r.send(trainEvent{Type: "start", Total: total})
}

func (r *socketReporter) Update(current int, message string) {
	r.send(trainEvent{Type: "progress", Current: current, Message: message})
}

func (r *socketReporter) Finish() {
	r.send(trainEvent{Type: "finish"})
}

// handleTrainSocket retrains from the configured dataset and streams the
// progress, closing the connection after the final result.
func (s *Server) handleTrainSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	reporter := &socketReporter{conn: conn, log: s.log}
	result := s.engine.TrainPath(r.Context(), "", reporter)
	reporter.send(trainEvent{Type: "result", Result: &result})

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

package api

import (
	"encoding/base64"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/export"
	"github.com/user/expdata/pkg/sink"
)

const wsHeartbeat = 30 * time.Second

// exportRequest is a data export request sent over the export websocket.
type exportRequest struct {
	AppName       string `json:"app_name"`
	FileExtension string `json:"file_extension"`
	Custom        bool   `json:"custom"`
}

type exportResponse struct {
	FileName string `json:"file_name,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Rows     int    `json:"rows"`
	Error    string `json:"error,omitempty"`
}

// checkOrigin accepts non-browser clients, the server's own host and the
// configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range s.origins {
		if a != "" && a == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return u.Hostname() == host
}

// handleExportWS answers every export request frame with the rendered file.
// Binary formats are base64 encoded.
func (s *Server) handleExportWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	wsConnections.Inc()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(2*wsHeartbeat + 10*time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2*wsHeartbeat + 10*time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ping := time.NewTicker(wsHeartbeat)
		defer ping.Stop()
		for {
			select {
			case <-done:
				return
			case <-ping.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		var req exportRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log("DEBUG", "Export websocket closed", "error", err)
			}
			return
		}

		resp := s.renderForSocket(r, req)
		if resp.Error != "" {
			wsRequests.WithLabelValues("error").Inc()
		} else {
			wsRequests.WithLabelValues("ok").Inc()
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) renderForSocket(r *http.Request, req exportRequest) exportResponse {
	format, err := sink.ParseFormat(req.FileExtension)
	if err != nil {
		return exportResponse{Error: err.Error()}
	}
	kind := export.KindHierarchical
	if req.Custom {
		kind = export.KindCustom
	}
	var apps []string
	if req.AppName != "" {
		apps = []string{req.AppName}
	}

	data, rows, err := s.svc.Bytes(r.Context(), export.Request{Apps: apps, Kind: kind, Format: format})
	if err != nil {
		s.log("ERROR", "Websocket export failed", "app", req.AppName, "format", format, "error", err)
		return exportResponse{Error: err.Error()}
	}

	payload := string(data)
	if format == expdata.FormatXLSX || format == expdata.FormatParquet {
		payload = base64.StdEncoding.EncodeToString(data)
	}
	return exportResponse{
		FileName: export.FileName(export.Prefix(apps), format, time.Now()),
		Data:     payload,
		MimeType: format.MimeType(),
		Rows:     rows,
	}
}

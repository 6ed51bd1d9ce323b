package network

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"avatarsync/palette"
)

// Handler serves the websocket endpoint plus the small HTTP API around it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/ws", s.ServeWS)

	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, s.cfg.Rooms.ListRooms())
		case http.MethodPost:
			code := s.cfg.Rooms.CreateRoom()
			s.log.Info("room created", zap.String("room", code))
			writeJSON(w, struct {
				Code string `json:"code"`
			}{code})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Without ?room this is the whole palette definition. Rooms allocate from
	// their own pools, so availability is only known per room.
	mux.HandleFunc("/debug/palette.webp", func(w http.ResponseWriter, r *http.Request) {
		var pool *palette.Pool
		if len(s.cfg.Colors) > 0 {
			pool = palette.New(s.cfg.Colors)
		}
		if code := r.URL.Query().Get("room"); code != "" {
			rm, ok := s.cfg.Rooms.Room(code)
			if !ok {
				http.Error(w, "unknown room", http.StatusNotFound)
				return
			}
			pool = rm.Palette()
		}
		if pool == nil {
			http.Error(w, "no palette", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		if err := palette.WriteWebP(w, pool); err != nil {
			s.log.Warn("palette export failed", zap.Error(err))
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

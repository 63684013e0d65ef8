package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/elopez-dev/codebattle-backend/internal/hub"
)

type createRoomRequest struct {
	DisplayName string `json:"display_name"`
}

type createRoomResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// CreateRoom registers a WAITING room and hands the host its identity;
// the host then attaches over /ws with that id.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.DisplayName == "" {
			req.DisplayName = "host"
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateRoom{HostName: req.DisplayName, Reply: reply}
		res := <-reply
		if res.Err != nil {
			log.Error("room creation failed", zap.Error(res.Err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createRoomResponse{
			Code:     res.Code,
			PlayerID: res.HostID,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

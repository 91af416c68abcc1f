package hypnoscope

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// FramePush is one websocket message: the current view plus a
// coherent snapshot of the scene, in the shape the D3 frontend
// binds directly.
type FramePush struct {
	View     string   `json:"view"`
	Snapshot Snapshot `json:"snapshot"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler streams scene snapshots to a connected frontend.
// Push rate is fixed; a slow or closed peer just ends the stream.
func (v *HypnoView) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		push := FramePush{
			View:     v.Ctrl.CurrentView().String(),
			Snapshot: v.Scene.Snap(),
		}
		if err := conn.WriteJSON(push); err != nil {
			return // Connection closed
		}
	}
}

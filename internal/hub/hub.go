package hub

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elopez-dev/codebattle-backend/internal/engine"
	"github.com/elopez-dev/codebattle-backend/internal/room"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	HostName string
	Reply    chan CreateResult
}

type CreateResult struct {
	Code   string
	HostID string
	Room   *room.Room
	Err    error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct{ Code string }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the room registry: the only structure shared across rooms.
// It is an actor, so create/get/remove are serialized without locks.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	roomCfg room.Config
	deps    room.Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, roomCfg room.Config, deps room.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		roomCfg: roomCfg,
		deps:    deps,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.handleCreate(msg.HostName)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.Code)

			case ShutdownHub:
				for _, r := range h.rooms {
					select {
					case r.Inbox() <- room.Shutdown{Reason: engine.ReasonShutdown}:
					case <-r.Done():
					}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

func (h *Hub) handleCreate(hostName string) CreateResult {
	code, err := h.freshCode()
	if err != nil {
		return CreateResult{Err: err}
	}
	hostID := uuid.NewString()

	deps := h.deps
	deps.OnClose = func(code string) {
		select {
		case h.inbox <- RemoveRoom{Code: code}:
		case <-h.ctx.Done():
		}
	}
	r := room.New(h.ctx, code, hostID, hostName, h.roomCfg, deps)
	h.rooms[code] = r
	h.log.Info("room created", zap.String("room", code))
	return CreateResult{Code: code, HostID: hostID, Room: r}
}

// freshCode retries on collision; with a 36^6 space and a handful of
// live rooms a second draw is already vanishingly rare.
func (h *Hub) freshCode() (string, error) {
	for {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
		h.log.Warn("room code collision, regenerating")
	}
}

package types

// Client -> Server (websocket, JSON; the connection is bound to a room)
// JoinRequest:
//   name: string  // requester's display name, shown to the host
//
// JoinResponse (host only):
//   requester_id: string
//   accepted: boolean
//
// ConfirmJoin: {}
//
// StartBattle (host only):
//   difficulty: number   // target rating, provider searches ±100
//   language: string
//   duration_sec: number
//
// Submit:
//   source: string
//
// RematchVote:
//   vote: "yes" | "no"
//
// ChatSend:
//   text: string
//
// Heartbeat: {}  // every 30s while connected
//
// Leave: {}

// Server -> Client
// JoinRequestNotify:
//   requester_id: string
//   requester_name: string
//
// JoinAccepted:
//   code: string
//   player_id: string  // keep for rejoin-attempts
//
// RoomEntered:
//   code: string
//
// BattleStarted:
//   problem: { id, title, description, input_format, output_format, difficulty, language }
//   duration_sec: number
//   round: number
//
// PhaseChanged:
//   phase: "waiting" | "setup" | "battle" | "judging" | "result" | "closed"
//
// Result:
//   winner: string  // player_id, empty on draw
//   reason: "score" | "earlier submission" | "draw"
//   scores: { [player_id]: number }
//
// RematchRestart: {}
//
// RematchDeclined:
//   reason: "rematch declined" | "rematch vote timed out"
//
// ChatMessage:
//   sender: string
//   kind: "player" | "system"
//   text: string
//
// Rejoined:
//   code: string
//   snapshot: see snapshot.go
//
// RoomClosed:
//   reason: string  // "opponent left", "opponent disconnected", "room expired", ...
//
// Error:
//   error: string

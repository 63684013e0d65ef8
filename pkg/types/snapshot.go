package types

// Snapshot (sent inside Rejoined):
//   code: string
//   phase: "waiting" | "setup" | "battle" | "judging" | "result"
//   round: number
//   is_host: boolean
//   remaining_ms: number  // server-derived; clients render, never count
//   problem: present only during battle; hidden test cases stripped
//   scores: { [player_id]: number }  // last judged round

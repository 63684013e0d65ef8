// Package history persists judged rounds and XP. Writes are keyed on
// (room code, round) so replays from the orchestrator never
// double-count.
package history

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchResult struct {
	RoomCode string
	Round    int
	HostID   string
	GuestID  string
	WinnerID string
	Reason   string
	Scores   map[string]int
	PlayedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, res MatchResult) error
}

type MatchRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RoomCode   string    `gorm:"uniqueIndex:idx_match_room_round;size:16"`
	Round      int       `gorm:"uniqueIndex:idx_match_room_round"`
	HostID     string    `gorm:"size:64"`
	GuestID    string    `gorm:"size:64"`
	WinnerID   string    `gorm:"size:64"`
	Reason     string    `gorm:"size:64"`
	HostScore  int
	GuestScore int
	PlayedAt   time.Time
}

func (MatchRecord) TableName() string { return "match_records" }

type PlayerStats struct {
	PlayerID string `gorm:"primaryKey;size:64"`
	XP       int    `gorm:"column:xp"`
	Wins     int
	Matches  int
}

func (PlayerStats) TableName() string { return "player_stats" }

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&MatchRecord{}, &PlayerStats{})
}

func (s *Store) Record(ctx context.Context, res MatchResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := MatchRecord{
			RoomCode:   res.RoomCode,
			Round:      res.Round,
			HostID:     res.HostID,
			GuestID:    res.GuestID,
			WinnerID:   res.WinnerID,
			Reason:     res.Reason,
			HostScore:  res.Scores[res.HostID],
			GuestScore: res.Scores[res.GuestID],
			PlayedAt:   res.PlayedAt,
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return nil // round already recorded, keep XP untouched
		}
		for _, pid := range []string{res.HostID, res.GuestID} {
			if pid == "" {
				continue
			}
			stats := PlayerStats{
				PlayerID: pid,
				XP:       res.Scores[pid],
				Matches:  1,
			}
			if pid == res.WinnerID {
				stats.Wins = 1
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "player_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"xp":      gorm.Expr("player_stats.xp + EXCLUDED.xp"),
					"wins":    gorm.Expr("player_stats.wins + EXCLUDED.wins"),
					"matches": gorm.Expr("player_stats.matches + EXCLUDED.matches"),
				}),
			}).Create(&stats).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Noop satisfies Recorder when no database is configured.
type Noop struct{}

func (Noop) Record(context.Context, MatchResult) error { return nil }

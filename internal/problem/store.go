package problem

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNoneAvailable = errors.New("no problem available for requested difficulty")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Problem{}, &TestCase{})
}

// Generate picks a random problem within difficulty±Band for the
// requested language.
func (s *Store) Generate(ctx context.Context, difficulty int, language string) (Problem, error) {
	min := difficulty - Band
	if min < 0 {
		min = 0
	}
	max := difficulty + Band

	var p Problem
	err := s.db.WithContext(ctx).
		Preload("TestCases").
		Where("difficulty >= ? AND difficulty <= ? AND language = ?", min, max, language).
		Order("RANDOM()").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Problem{}, ErrNoneAvailable
	}
	if err != nil {
		return Problem{}, err
	}
	return p, nil
}

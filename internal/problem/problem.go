package problem

import (
	"context"
)

// TestCase is hidden from clients; battle-started payloads must never
// carry expected outputs.
type TestCase struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ProblemID string `gorm:"index" json:"-"`
	Input     string `json:"-"`
	Expected  string `json:"-"`
}

func (TestCase) TableName() string { return "problem_test_cases" }

type Problem struct {
	ID           string     `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Title        string     `gorm:"column:title" json:"title"`
	Description  string     `gorm:"column:description" json:"description"`
	InputFormat  string     `gorm:"column:input_format" json:"input_format"`
	OutputFormat string     `gorm:"column:output_format" json:"output_format"`
	Difficulty   int        `gorm:"column:difficulty;index" json:"difficulty"`
	Language     string     `gorm:"column:language;index" json:"language"`
	TestCases    []TestCase `gorm:"foreignKey:ProblemID" json:"-"`
}

func (Problem) TableName() string { return "problems" }

// Provider is the "generate problem" collaborator consumed by the
// battle orchestrator. Implementations must respect ctx cancellation.
type Provider interface {
	Generate(ctx context.Context, difficulty int, language string) (Problem, error)
}

// Band widens a target difficulty into the query window used by
// database-backed lookups.
const Band = 100

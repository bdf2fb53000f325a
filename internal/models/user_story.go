package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority - приоритет пользовательской истории.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// CoercePriority нормализует произвольную строку (в том числе из ответа LLM)
// к одному из допустимых приоритетов. Нераспознанные значения сводятся к Medium.
func CoercePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	default:
		return PriorityMedium
	}
}

// InferPriorityFromNotes выводит приоритет из свободного текста заметок.
// Явные пометки в заметках имеют приоритет над значением по умолчанию.
func InferPriorityFromNotes(notes string) Priority {
	lower := strings.ToLower(notes)
	if strings.Contains(lower, "high priority") || strings.Contains(lower, "urgent") {
		return PriorityHigh
	}
	if strings.Contains(lower, "low priority") {
		return PriorityLow
	}
	return PriorityMedium
}

// UserStoryInputs - ответы пользователя, собранные пошаговым мастером.
type UserStoryInputs struct {
	Role               string     `json:"role"`
	Goal               string     `json:"goal"`
	Benefit            string     `json:"benefit"`
	Priority           Priority   `json:"priority"`
	AcceptanceCriteria []string   `json:"acceptanceCriteria"`
	AdditionalNotes    string     `json:"additionalNotes"`
	ProjectID          *uuid.UUID `json:"projectId,omitempty"`
}

// UserStory - сохраненная пользовательская история.
// ProjectName - денормализованное имя проекта, заполняется при чтении.
type UserStory struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	UserID             uuid.UUID  `db:"user_id" json:"user_id"`
	ProjectID          *uuid.UUID `db:"project_id" json:"project_id,omitempty"`
	ProjectName        string     `db:"project_name" json:"project_name,omitempty"`
	Role               string     `db:"role" json:"role"`
	Goal               string     `db:"goal" json:"goal"`
	Benefit            string     `db:"benefit" json:"benefit"`
	StoryText          string     `db:"story_text" json:"story_text"`
	Priority           Priority   `db:"priority" json:"priority"`
	AcceptanceCriteria []string   `db:"acceptance_criteria" json:"acceptance_criteria"`
	AdditionalNotes    string     `db:"additional_notes" json:"additional_notes"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// ComposeStoryText собирает каноническую формулировку истории из трех частей.
func ComposeStoryText(role, goal, benefit string) string {
	return fmt.Sprintf("As a %s, I want to %s, so that %s.", role, goal, benefit)
}

// EffectivePriority возвращает сохраненный приоритет, а при его отсутствии
// выводит приоритет из заметок.
func (s *UserStory) EffectivePriority() Priority {
	if s.Priority != "" {
		return s.Priority
	}
	return InferPriorityFromNotes(s.AdditionalNotes)
}

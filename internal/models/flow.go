package models

import (
	"strings"

	"github.com/google/uuid"
)

// FlowState - состояние сессии пошагового мастера.
type FlowState string

const (
	FlowStateAsking     FlowState = "asking"
	FlowStateGenerating FlowState = "generating"
	FlowStateResults    FlowState = "results"
	FlowStateCancelled  FlowState = "cancelled"
)

// StepKind определяет способ валидации ответа на шаге.
type StepKind string

const (
	StepKindText     StepKind = "text"
	StepKindSelect   StepKind = "select"
	StepKindSequence StepKind = "sequence"
)

// FlowStep - один вопрос мастера.
type FlowStep struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Kind     StepKind `json:"kind"`
	Optional bool     `json:"optional"`
}

// FlowSteps - фиксированная последовательность вопросов мастера.
// Порядок значим: роль, цель, выгода, приоритет, критерии приемки, заметки.
var FlowSteps = []FlowStep{
	{ID: "role", Prompt: "Who is this story for? (e.g. a marketing manager)", Kind: StepKindText},
	{ID: "goal", Prompt: "What do they want to accomplish?", Kind: StepKindText},
	{ID: "benefit", Prompt: "Why do they want it? What is the benefit?", Kind: StepKindText},
	{ID: "priority", Prompt: "How important is this story?", Kind: StepKindSelect},
	{ID: "acceptanceCriteria", Prompt: "List the acceptance criteria, one per line.", Kind: StepKindSequence},
	{ID: "additionalNotes", Prompt: "Anything else worth noting?", Kind: StepKindText, Optional: true},
}

// StepAnswerValid проверяет, заполнен ли ответ текущего шага.
// Опциональные шаги проходят всегда; select-шаг проходит, потому что
// у приоритета есть значение по умолчанию.
func StepAnswerValid(step FlowStep, inputs *UserStoryInputs) bool {
	if step.Optional {
		return true
	}
	switch step.ID {
	case "role":
		return strings.TrimSpace(inputs.Role) != ""
	case "goal":
		return strings.TrimSpace(inputs.Goal) != ""
	case "benefit":
		return strings.TrimSpace(inputs.Benefit) != ""
	case "priority":
		return true
	case "acceptanceCriteria":
		return len(inputs.AcceptanceCriteria) > 0
	case "additionalNotes":
		return true
	default:
		return false
	}
}

// FlowSnapshot - снимок состояния сессии для отдачи клиенту.
type FlowSnapshot struct {
	SessionID        uuid.UUID       `json:"session_id"`
	State            FlowState       `json:"state"`
	CurrentStepIndex int             `json:"current_step_index"`
	CurrentStep      *FlowStep       `json:"current_step,omitempty"`
	Inputs           UserStoryInputs `json:"inputs"`
	GeneratedStory   *UserStory      `json:"generated_story,omitempty"`
	IsLoading        bool            `json:"is_loading"`
	RetryCount       int             `json:"retry_count"`
	IsResultsScreen  bool            `json:"is_results_screen"`
	Notice           string          `json:"notice,omitempty"`
}

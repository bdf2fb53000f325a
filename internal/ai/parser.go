package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StoryDraft - один черновик истории из ответа модели на bulk-запрос.
// Поля намеренно нестрогие: модель может вернуть приоритет в произвольном
// регистре или вовсе опустить критерии приемки.
type StoryDraft struct {
	Role               string   `json:"role"`
	Goal               string   `json:"goal"`
	Benefit            string   `json:"benefit"`
	Priority           string   `json:"priority"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	AdditionalNotes    string   `json:"additionalNotes"`
}

// ErrNoJSONArray возвращается, когда в свободном тексте ответа не удалось
// найти ни одного валидного JSON-массива.
var ErrNoJSONArray = errors.New("в ответе модели не найден JSON-массив")

// ExtractJSONArray находит первый валидный JSON-массив в свободном тексте.
// Модели часто оборачивают JSON в markdown-блоки или пояснения, поэтому
// ищем по скобкам, а не парсим ответ целиком.
func ExtractJSONArray(text string) (json.RawMessage, error) {
	start := strings.Index(text, "[")
	if start < 0 {
		return nil, ErrNoJSONArray
	}
	// Пробуем от первой '[' до каждой последующей ']' с конца:
	// так захватываются вложенные массивы внутри элементов.
	for end := len(text); end > start; end-- {
		if text[end-1] != ']' {
			continue
		}
		candidate := text[start:end]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoJSONArray
}

// ParseStoryDrafts извлекает из свободного текста ответа модели не более
// maxCount черновиков историй. Ошибка парсинга - это ошибка данных, не паника.
func ParseStoryDrafts(text string, maxCount int) ([]StoryDraft, error) {
	raw, err := ExtractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var drafts []StoryDraft
	if err := json.Unmarshal(raw, &drafts); err != nil {
		return nil, fmt.Errorf("не удалось распарсить массив черновиков: %w", err)
	}

	// Модель может вернуть больше, чем просили - усекаем.
	if len(drafts) > maxCount {
		drafts = drafts[:maxCount]
	}

	for i := range drafts {
		if drafts[i].AcceptanceCriteria == nil {
			drafts[i].AcceptanceCriteria = []string{}
		}
	}
	return drafts, nil
}

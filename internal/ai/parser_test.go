package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge-server/internal/ai"
)

func TestExtractJSONArray(t *testing.T) {
	t.Run("чистый массив", func(t *testing.T) {
		raw, err := ai.ExtractJSONArray(`[{"role":"a user"}]`)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"role":"a user"}]`, string(raw))
	})

	t.Run("массив внутри markdown-блока", func(t *testing.T) {
		text := "Here are the stories:\n```json\n[{\"role\":\"a user\"}]\n```\nLet me know!"
		raw, err := ai.ExtractJSONArray(text)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"role":"a user"}]`, string(raw))
	})

	t.Run("вложенные массивы в элементах", func(t *testing.T) {
		text := `Sure! [{"acceptanceCriteria":["a","b"]},{"acceptanceCriteria":[]}] done`
		raw, err := ai.ExtractJSONArray(text)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"acceptanceCriteria":["a","b"]},{"acceptanceCriteria":[]}]`, string(raw))
	})

	t.Run("текст без массива", func(t *testing.T) {
		_, err := ai.ExtractJSONArray("I could not generate anything, sorry.")
		assert.ErrorIs(t, err, ai.ErrNoJSONArray)
	})

	t.Run("скобки без валидного JSON", func(t *testing.T) {
		_, err := ai.ExtractJSONArray("see [citation 1] for details")
		assert.ErrorIs(t, err, ai.ErrNoJSONArray)
	})
}

func TestParseStoryDrafts(t *testing.T) {
	t.Run("усечение до запрошенного количества", func(t *testing.T) {
		text := `[
			{"role":"a","goal":"b","benefit":"c","priority":"High"},
			{"role":"d","goal":"e","benefit":"f","priority":"low"},
			{"role":"g","goal":"h","benefit":"i"}
		]`
		drafts, err := ai.ParseStoryDrafts(text, 2)
		require.NoError(t, err)
		require.Len(t, drafts, 2)
		assert.Equal(t, "a", drafts[0].Role)
		assert.Equal(t, "low", drafts[1].Priority)
	})

	t.Run("отсутствующие критерии приводятся к пустому списку", func(t *testing.T) {
		drafts, err := ai.ParseStoryDrafts(`[{"role":"a","goal":"b","benefit":"c"}]`, 5)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.NotNil(t, drafts[0].AcceptanceCriteria)
		assert.Empty(t, drafts[0].AcceptanceCriteria)
	})

	t.Run("массив не объектов - ошибка данных", func(t *testing.T) {
		_, err := ai.ParseStoryDrafts(`[1,2,3]`, 3)
		assert.Error(t, err)
	})
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge-server/internal/models"
)

func serviceErrorResponse(t *testing.T, err error) (int, models.ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	handleServiceError(c, err)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandleServiceError(t *testing.T) {
	t.Run("внутренний текст ошибки валидации не утекает клиенту", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: role, goal и benefit обязательны", models.ErrInvalidInput)
		code, body := serviceErrorResponse(t, wrapped)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid request data", body.Error)
		assert.NotContains(t, body.Error, "обязательны")
	})

	t.Run("доменные ошибки переводятся в фиксированные сообщения", func(t *testing.T) {
		cases := []struct {
			err     error
			code    int
			message string
		}{
			{models.ErrProjectRequired, http.StatusUnprocessableEntity, "A project must be selected before generating"},
			{models.ErrProjectNotFound, http.StatusNotFound, "Project not found"},
			{models.ErrGenerationInProgress, http.StatusConflict, "Generation is already in progress"},
		}
		for _, tc := range cases {
			code, body := serviceErrorResponse(t, tc.err)
			assert.Equal(t, tc.code, code, "err: %v", tc.err)
			assert.Equal(t, tc.message, body.Error)
		}
	})

	t.Run("неизвестная ошибка не раскрывает деталей", func(t *testing.T) {
		code, body := serviceErrorResponse(t, fmt.Errorf("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "An unexpected internal error occurred", body.Error)
	})
}

package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-server/internal/messaging"
	notifierconfig "storyforge-server/internal/notifier/config"
)

func testSender() *smtpSender {
	return &smtpSender{
		cfg: notifierconfig.SMTPConfig{
			From:         "noreply@storyforge.example",
			SupportInbox: "support@storyforge.example",
		},
		logger: zap.NewNop(),
	}
}

func TestSMTPSender_Render(t *testing.T) {
	s := testSender()

	t.Run("приветственное письмо уходит пользователю", func(t *testing.T) {
		recipient, subject, body, err := s.render(messaging.EmailTaskPayload{
			Kind:      messaging.EmailKindWelcome,
			Recipient: "alice@example.com",
			Fields:    map[string]string{"display_name": "Alice"},
		})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", recipient)
		assert.NotEmpty(t, subject)
		assert.Contains(t, body, "Alice")
	})

	t.Run("форма обратной связи уходит в поддержку", func(t *testing.T) {
		recipient, _, body, err := s.render(messaging.EmailTaskPayload{
			Kind: messaging.EmailKindContactForm,
			Fields: map[string]string{
				"name":    "Bob",
				"email":   "bob@example.com",
				"message": "The wizard lost my answers.",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "support@storyforge.example", recipient)
		assert.Contains(t, body, "bob@example.com")
		assert.Contains(t, body, "The wizard lost my answers.")
	})

	t.Run("явная тема задачи имеет приоритет", func(t *testing.T) {
		_, subject, _, err := s.render(messaging.EmailTaskPayload{
			Kind:      messaging.EmailKindSupportRequest,
			Subject:   "Re: ticket 42",
			Recipient: "agent@storyforge.example",
			Fields:    map[string]string{"topic": "billing"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Re: ticket 42", subject)
	})

	t.Run("неизвестный тип задачи", func(t *testing.T) {
		_, _, _, err := s.render(messaging.EmailTaskPayload{Kind: "push_notification"})
		assert.Error(t, err)
	})

	t.Run("письмо без получателя", func(t *testing.T) {
		empty := &smtpSender{cfg: notifierconfig.SMTPConfig{}, logger: zap.NewNop()}
		_, _, _, err := empty.render(messaging.EmailTaskPayload{
			Kind:   messaging.EmailKindContactForm,
			Fields: map[string]string{"name": "Bob"},
		})
		assert.Error(t, err)
	})
}

package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-server/internal/messaging"
	"storyforge-server/internal/models"
)

// ContactService принимает обращения с формы обратной связи и из поддержки
// и ставит их в очередь на отправку. Отправка best-effort: ошибка публикации
// не всплывает, вместо этого возвращается queued=false, чтобы хендлер мог
// сообщить о частичном успехе. Ошибка возможна только при невалидных входных
// данных.
type ContactService interface {
	SubmitContactForm(ctx context.Context, name, email, message string) (queued bool, err error)
	SubmitSupportRequest(ctx context.Context, user *models.User, topic, message string) (queued bool, err error)
}

type contactServiceImpl struct {
	publisher messaging.EmailTaskPublisher
	logger    *zap.Logger
}

var _ ContactService = (*contactServiceImpl)(nil)

func NewContactService(publisher messaging.EmailTaskPublisher, logger *zap.Logger) ContactService {
	return &contactServiceImpl{
		publisher: publisher,
		logger:    logger.Named("ContactService"),
	}
}

func (s *contactServiceImpl) SubmitContactForm(ctx context.Context, name, email, message string) (bool, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	message = strings.TrimSpace(message)

	if name == "" || message == "" {
		return false, fmt.Errorf("%w: name и message обязательны", models.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return false, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}

	task := messaging.EmailTaskPayload{
		TaskID:  uuid.New().String(),
		Kind:    messaging.EmailKindContactForm,
		ReplyTo: email,
		Fields: map[string]string{
			"name":    name,
			"email":   email,
			"message": message,
		},
	}
	return s.dispatch(ctx, task), nil
}

func (s *contactServiceImpl) SubmitSupportRequest(ctx context.Context, user *models.User, topic, message string) (bool, error) {
	topic = strings.TrimSpace(topic)
	message = strings.TrimSpace(message)
	if topic == "" || message == "" {
		return false, fmt.Errorf("%w: topic и message обязательны", models.ErrInvalidInput)
	}

	task := messaging.EmailTaskPayload{
		TaskID:  uuid.New().String(),
		Kind:    messaging.EmailKindSupportRequest,
		ReplyTo: user.Email,
		Fields: map[string]string{
			"username": user.Username,
			"email":    user.Email,
			"topic":    topic,
			"message":  message,
		},
	}
	return s.dispatch(ctx, task), nil
}

// dispatch публикует задачу; сбой логируется и превращается в queued=false.
func (s *contactServiceImpl) dispatch(ctx context.Context, task messaging.EmailTaskPayload) bool {
	if err := s.publisher.PublishEmailTask(ctx, task); err != nil {
		s.logger.Error("Non-critical: failed to queue email task",
			zap.String("taskID", task.TaskID),
			zap.String("kind", string(task.Kind)),
			zap.Error(err),
		)
		return false
	}
	return true
}

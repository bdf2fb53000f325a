package notifier

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"storyforge-server/internal/messaging"
	notifierconfig "storyforge-server/internal/notifier/config"
)

// EmailSender отправляет письмо по уже собранному шаблону.
type EmailSender interface {
	Send(task messaging.EmailTaskPayload) error
}

type smtpSender struct {
	cfg    notifierconfig.SMTPConfig
	logger *zap.Logger
}

var _ EmailSender = (*smtpSender)(nil)

func NewSMTPSender(cfg notifierconfig.SMTPConfig, logger *zap.Logger) EmailSender {
	return &smtpSender{cfg: cfg, logger: logger.Named("SMTPSender")}
}

func (s *smtpSender) Send(task messaging.EmailTaskPayload) error {
	recipient, subject, body, err := s.render(task)
	if err != nil {
		return err
	}

	var headers strings.Builder
	headers.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	headers.WriteString(fmt.Sprintf("To: %s\r\n", recipient))
	if task.ReplyTo != "" {
		headers.WriteString(fmt.Sprintf("Reply-To: %s\r\n", task.ReplyTo))
	}
	headers.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	headers.WriteString("\r\n")
	headers.WriteString(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{recipient}, []byte(headers.String())); err != nil {
		return fmt.Errorf("ошибка отправки письма через SMTP: %w", err)
	}

	s.logger.Info("Письмо отправлено",
		zap.String("task_id", task.TaskID),
		zap.String("kind", string(task.Kind)),
	)
	return nil
}

// render выбирает получателя, тему и тело письма по типу задачи.
func (s *smtpSender) render(task messaging.EmailTaskPayload) (recipient, subject, body string, err error) {
	switch task.Kind {
	case messaging.EmailKindWelcome:
		recipient = task.Recipient
		subject = "Добро пожаловать в StoryForge"
		body = fmt.Sprintf(
			"Здравствуйте, %s!\n\nВаш аккаунт успешно создан. Теперь вы можете создавать пользовательские истории для своих проектов.\n\nКоманда StoryForge",
			task.Fields["display_name"],
		)
	case messaging.EmailKindContactForm:
		recipient = s.supportRecipient(task)
		subject = "Новое сообщение с формы обратной связи"
		body = fmt.Sprintf(
			"Имя: %s\nEmail: %s\n\nСообщение:\n%s",
			task.Fields["name"], task.Fields["email"], task.Fields["message"],
		)
	case messaging.EmailKindSupportRequest:
		recipient = s.supportRecipient(task)
		subject = fmt.Sprintf("Обращение в поддержку: %s", task.Fields["topic"])
		body = fmt.Sprintf(
			"Пользователь: %s (%s)\nТема: %s\n\nОписание:\n%s",
			task.Fields["username"], task.Fields["email"], task.Fields["topic"], task.Fields["message"],
		)
	default:
		return "", "", "", fmt.Errorf("неизвестный тип email-задачи: %s", task.Kind)
	}

	if task.Subject != "" {
		subject = task.Subject
	}
	if recipient == "" {
		return "", "", "", fmt.Errorf("не удалось определить получателя для задачи %s", task.TaskID)
	}
	return recipient, subject, body, nil
}

func (s *smtpSender) supportRecipient(task messaging.EmailTaskPayload) string {
	if task.Recipient != "" {
		return task.Recipient
	}
	return s.cfg.SupportInbox
}

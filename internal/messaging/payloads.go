package messaging

// EmailKind - тип письма, определяющий шаблон на стороне notifier'а.
type EmailKind string

const (
	EmailKindWelcome        EmailKind = "welcome"
	EmailKindContactForm    EmailKind = "contact_form"
	EmailKindSupportRequest EmailKind = "support_request"
)

// EmailTaskPayload - задача на отправку письма. Публикуется fire-and-forget:
// сбой отправки никогда не откатывает первичное действие (регистрацию,
// отправку формы).
type EmailTaskPayload struct {
	TaskID    string            `json:"task_id"`
	Kind      EmailKind         `json:"kind"`
	Recipient string            `json:"recipient"`
	ReplyTo   string            `json:"reply_to,omitempty"`
	Subject   string            `json:"subject"`
	Fields    map[string]string `json:"fields,omitempty"` // Подстановки шаблона (имя, текст обращения и т.п.)
}

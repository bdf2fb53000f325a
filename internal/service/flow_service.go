package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/models"
)

// FlowPolicy - настройки повторов и таймаутов генерации.
type FlowPolicy struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	GenerateTimeout time.Duration
	SafetyTimeout   time.Duration
}

// StepAnswer - ответ пользователя на текущий шаг. Text для текстовых и
// select-шагов, Items для последовательностей (критерии приемки).
type StepAnswer struct {
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// FlowService управляет сессиями пошагового мастера создания историй.
type FlowService interface {
	StartSession(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) (*models.FlowSnapshot, error)
	GetState(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error)
	// SubmitAnswer записывает ответ текущего шага и продвигает сессию.
	// На последнем шаге запускает генерацию. При пустом ответе на
	// обязательном шаге состояние не меняется.
	SubmitAnswer(ctx context.Context, userID, sessionID uuid.UUID, answer StepAnswer) (*models.FlowSnapshot, error)
	Back(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error)
	// Cancel отменяет текущую попытку генерации. Вне состояния Generating -
	// идемпотентный no-op.
	Cancel(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error)
	// Reset возвращает сессию к первому шагу, опционально сохраняя проект.
	Reset(userID, sessionID uuid.UUID, keepProject bool) (*models.FlowSnapshot, error)
	DestroySession(userID, sessionID uuid.UUID) error
}

var (
	flowAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyforge_flow_generation_attempts_total",
		Help: "Generation attempts started, including automatic retries.",
	})
	flowRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyforge_flow_generation_retries_total",
		Help: "Automatic retries after a transient generation failure.",
	})
	flowCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyforge_flow_generation_cancellations_total",
		Help: "Generation attempts aborted by explicit cancellation.",
	})
	flowSafetyTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyforge_flow_safety_timer_triggered_total",
		Help: "Times the safety timer had to force the loading flag off.",
	})
)

// flowSession - одна сессия мастера. Все поля защищены mu.
// epoch растет при каждом запуске/отмене/сбросе генерации: поздние
// результаты устаревших попыток сверяют его и молча отбрасываются.
type flowSession struct {
	mu sync.Mutex

	id         uuid.UUID
	userID     uuid.UUID
	state      models.FlowState
	stepIndex  int
	inputs     models.UserStoryInputs
	generated  *models.UserStory
	isLoading  bool
	retryCount int
	notice     string

	epoch     uint64
	cancelGen context.CancelFunc
}

type flowServiceImpl struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*flowSession

	stories StoryService
	bus     *events.Bus
	policy  FlowPolicy
	logger  *zap.Logger
}

var _ FlowService = (*flowServiceImpl)(nil)

func NewFlowService(stories StoryService, bus *events.Bus, policy FlowPolicy, logger *zap.Logger) FlowService {
	return &flowServiceImpl{
		sessions: make(map[uuid.UUID]*flowSession),
		stories:  stories,
		bus:      bus,
		policy:   policy,
		logger:   logger.Named("FlowService"),
	}
}

func (s *flowServiceImpl) StartSession(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) (*models.FlowSnapshot, error) {
	if projectID != nil {
		// Проект должен существовать и принадлежать пользователю.
		if _, err := s.stories.GetProject(ctx, userID, *projectID); err != nil {
			return nil, err
		}
	}

	sess := &flowSession{
		id:     uuid.New(),
		userID: userID,
		state:  models.FlowStateAsking,
		inputs: models.UserStoryInputs{
			Priority:           models.PriorityMedium,
			AcceptanceCriteria: []string{},
			ProjectID:          projectID,
		},
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if projectID != nil {
		s.bus.Publish(events.Event{
			Topic:     events.TopicProjectSelected,
			UserID:    userID,
			ProjectID: projectID,
		})
	}

	s.logger.Info("Сессия мастера создана",
		zap.String("sessionID", sess.id.String()),
		zap.String("userID", userID.String()),
	)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) GetState(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) SubmitAnswer(ctx context.Context, userID, sessionID uuid.UUID, answer StepAnswer) (*models.FlowSnapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case models.FlowStateGenerating:
		return sess.snapshot(), models.ErrGenerationInProgress
	case models.FlowStateResults:
		return sess.snapshot(), models.ErrBadRequest
	case models.FlowStateCancelled:
		// Отмененная сессия возобновляется с последнего вопроса.
		sess.state = models.FlowStateAsking
		sess.notice = ""
	}

	step := models.FlowSteps[sess.stepIndex]

	// Сначала проверяем ответ-кандидат: невалидный ответ не меняет состояние.
	candidate := sess.inputs
	applyAnswer(&candidate, step, answer)
	if !models.StepAnswerValid(step, &candidate) {
		return sess.snapshot(), models.ErrStepIncomplete
	}
	sess.inputs = candidate
	sess.notice = ""

	if sess.stepIndex == len(models.FlowSteps)-1 {
		if sess.inputs.ProjectID == nil {
			return sess.snapshot(), models.ErrProjectRequired
		}
		s.startGeneration(sess)
		return sess.snapshot(), nil
	}

	sess.stepIndex++
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) Back(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == models.FlowStateGenerating {
		return sess.snapshot(), models.ErrGenerationInProgress
	}
	if sess.state == models.FlowStateCancelled {
		sess.state = models.FlowStateAsking
	}
	if sess.stepIndex > 0 {
		sess.stepIndex--
		sess.notice = ""
		return sess.snapshot(), nil
	}
	// С первого шага "назад" выводит из мастера к выбору проекта.
	sess.notice = "Choose a project to continue."
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) Cancel(userID, sessionID uuid.UUID) (*models.FlowSnapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != models.FlowStateGenerating {
		// Повторная или несвоевременная отмена безвредна.
		return sess.snapshot(), nil
	}

	sess.epoch++
	if sess.cancelGen != nil {
		sess.cancelGen()
		sess.cancelGen = nil
	}
	sess.state = models.FlowStateCancelled
	sess.isLoading = false
	sess.stepIndex = len(models.FlowSteps) - 1
	sess.notice = "Generation cancelled."
	flowCancellations.Inc()

	s.logger.Info("Генерация отменена пользователем",
		zap.String("sessionID", sess.id.String()),
	)
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) Reset(userID, sessionID uuid.UUID, keepProject bool) (*models.FlowSnapshot, error) {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.epoch++
	if sess.cancelGen != nil {
		sess.cancelGen()
		sess.cancelGen = nil
	}

	var projectID *uuid.UUID
	if keepProject {
		projectID = sess.inputs.ProjectID
	}
	sess.state = models.FlowStateAsking
	sess.stepIndex = 0
	sess.inputs = models.UserStoryInputs{
		Priority:           models.PriorityMedium,
		AcceptanceCriteria: []string{},
		ProjectID:          projectID,
	}
	sess.generated = nil
	sess.isLoading = false
	sess.retryCount = 0
	sess.notice = ""
	return sess.snapshot(), nil
}

func (s *flowServiceImpl) DestroySession(userID, sessionID uuid.UUID) error {
	sess, err := s.session(userID, sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.epoch++
	if sess.cancelGen != nil {
		sess.cancelGen()
		sess.cancelGen = nil
	}
	sess.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// session находит сессию владельца. Чужая сессия неотличима от отсутствующей.
func (s *flowServiceImpl) session(userID, sessionID uuid.UUID) (*flowSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || sess.userID != userID {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// startGeneration запускает асинхронную попытку. Вызывается под sess.mu.
func (s *flowServiceImpl) startGeneration(sess *flowSession) {
	sess.state = models.FlowStateGenerating
	sess.isLoading = true
	sess.notice = ""
	sess.retryCount = 0
	sess.epoch++
	epoch := sess.epoch

	genCtx, cancel := context.WithCancel(context.Background())
	sess.cancelGen = cancel

	inputs := sess.inputs
	inputs.AcceptanceCriteria = append([]string(nil), sess.inputs.AcceptanceCriteria...)
	userID := sess.userID

	// Страховочный таймер: гарантирует сброс флага загрузки, даже если
	// попытка зависла в обход собственного таймаута.
	time.AfterFunc(s.policy.SafetyTimeout, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.epoch == epoch && sess.isLoading {
			sess.isLoading = false
			flowSafetyTriggers.Inc()
			s.logger.Warn("Сработал страховочный таймер генерации",
				zap.String("sessionID", sess.id.String()),
			)
		}
	})

	go s.runGeneration(genCtx, sess, epoch, userID, inputs)
}

// runGeneration выполняет попытки с ограниченным числом повторов.
// Результаты применяются только если epoch попытки еще актуален.
func (s *flowServiceImpl) runGeneration(genCtx context.Context, sess *flowSession, epoch uint64, userID uuid.UUID, inputs models.UserStoryInputs) {
	for attempt := 0; ; attempt++ {
		flowAttempts.Inc()

		attemptCtx, cancel := context.WithTimeout(genCtx, s.policy.GenerateTimeout)
		story, err := s.stories.CreateStory(attemptCtx, userID, inputs)
		cancel()

		if err == nil {
			s.settleSuccess(sess, epoch, story)
			return
		}

		if genCtx.Err() != nil {
			// Явная отмена: молча выходим, без повторов и без уведомлений.
			return
		}

		if isFatalGenerationError(err) {
			s.settleFailure(sess, epoch, err)
			return
		}

		if attempt >= s.policy.MaxRetries {
			s.logger.Warn("Повторы генерации исчерпаны",
				zap.String("sessionID", sess.id.String()),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			s.settleFailure(sess, epoch, err)
			return
		}

		if !s.noteRetry(sess, epoch) {
			return
		}
		select {
		case <-genCtx.Done():
			return
		case <-time.After(s.policy.RetryBackoff):
		}
	}
}

// noteRetry увеличивает счетчик повторов, если попытка все еще актуальна.
func (s *flowServiceImpl) noteRetry(sess *flowSession, epoch uint64) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.epoch != epoch || sess.state != models.FlowStateGenerating {
		return false
	}
	sess.retryCount++
	flowRetries.Inc()
	return true
}

func (s *flowServiceImpl) settleSuccess(sess *flowSession, epoch uint64, story *models.UserStory) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.epoch != epoch || sess.state != models.FlowStateGenerating {
		// Попытка устарела: результат отбрасываем, история уже в БД,
		// уведомление о ее создании опубликовал доменный слой.
		return
	}
	sess.generated = story
	sess.state = models.FlowStateResults
	sess.stepIndex = len(models.FlowSteps)
	sess.isLoading = false
	sess.retryCount = 0
	sess.notice = ""
	sess.cancelGen = nil

	s.logger.Info("Генерация завершена успешно",
		zap.String("sessionID", sess.id.String()),
		zap.String("storyID", story.ID.String()),
	)
}

func (s *flowServiceImpl) settleFailure(sess *flowSession, epoch uint64, err error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.epoch != epoch || sess.state != models.FlowStateGenerating {
		return
	}
	sess.state = models.FlowStateAsking
	sess.stepIndex = len(models.FlowSteps) - 1
	sess.isLoading = false
	sess.notice = failureNotice(err)
	sess.cancelGen = nil
}

// isFatalGenerationError отличает ошибки, по которым повтор бессмыслен.
func isFatalGenerationError(err error) bool {
	return errors.Is(err, models.ErrInvalidInput) ||
		errors.Is(err, models.ErrProjectNotFound) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrUnauthorized) ||
		errors.Is(err, models.ErrForbidden)
}

// failureNotice - сообщение для пользователя без внутренних деталей.
func failureNotice(err error) string {
	switch {
	case errors.Is(err, models.ErrProjectNotFound):
		return "The selected project no longer exists."
	case errors.Is(err, models.ErrInvalidInput):
		return "Some answers are missing or invalid."
	default:
		return "Story generation failed. Please try again."
	}
}

// applyAnswer записывает ответ в черновик согласно типу шага.
func applyAnswer(inputs *models.UserStoryInputs, step models.FlowStep, answer StepAnswer) {
	switch step.ID {
	case "role":
		inputs.Role = strings.TrimSpace(answer.Text)
	case "goal":
		inputs.Goal = strings.TrimSpace(answer.Text)
	case "benefit":
		inputs.Benefit = strings.TrimSpace(answer.Text)
	case "priority":
		inputs.Priority = models.CoercePriority(answer.Text)
	case "acceptanceCriteria":
		items := make([]string, 0, len(answer.Items))
		for _, it := range answer.Items {
			if strings.TrimSpace(it) != "" {
				items = append(items, strings.TrimSpace(it))
			}
		}
		inputs.AcceptanceCriteria = items
	case "additionalNotes":
		inputs.AdditionalNotes = strings.TrimSpace(answer.Text)
	}
}

// snapshot собирает снимок состояния. Вызывается под sess.mu.
func (sess *flowSession) snapshot() *models.FlowSnapshot {
	snap := &models.FlowSnapshot{
		SessionID:        sess.id,
		State:            sess.state,
		CurrentStepIndex: sess.stepIndex,
		Inputs:           sess.inputs,
		GeneratedStory:   sess.generated,
		IsLoading:        sess.isLoading,
		RetryCount:       sess.retryCount,
		Notice:           sess.notice,
	}
	snap.Inputs.AcceptanceCriteria = append([]string(nil), sess.inputs.AcceptanceCriteria...)
	if sess.stepIndex < len(models.FlowSteps) {
		step := models.FlowSteps[sess.stepIndex]
		snap.CurrentStep = &step
	}
	snap.IsResultsScreen = sess.stepIndex == len(models.FlowSteps) &&
		sess.generated != nil && !sess.isLoading
	return snap
}

package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Topic - именованный канал широковещательных уведомлений.
type Topic string

const (
	TopicStoryCreated    Topic = "storyCreated"
	TopicProjectChanged  Topic = "projectChanged"
	TopicProjectSelected Topic = "projectSelected"
)

// Event - типизированное уведомление. Потребители обязаны относиться к нему
// как к подсказке "перечитай источник истины": доставка не гарантируется,
// порядок относительно других операций не определен.
type Event struct {
	Topic     Topic      `json:"topic"`
	UserID    uuid.UUID  `json:"userId"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	StoryID   *uuid.UUID `json:"storyId,omitempty"`
}

var eventsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storyforge_bus_events_dropped_total",
		Help: "Events dropped because a subscriber channel was full.",
	},
	[]string{"topic"},
)

// Subscription - активная подписка. Unsubscribe обязателен при завершении
// жизненного цикла потребителя.
type Subscription struct {
	C chan Event

	bus   *Bus
	topic Topic
	id    uint64
	once  sync.Once
}

// Unsubscribe снимает подписку и закрывает канал. Идемпотентен.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
		close(s.C)
	})
}

// Bus - внутрипроцессная шина публикации/подписки с именованными топиками.
// Публикация fire-and-forget: медленные подписчики не блокируют публикующего,
// их события отбрасываются и учитываются в метрике.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic]map[uint64]*Subscription
	logger *zap.Logger
}

// NewBus создает новую шину событий.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic]map[uint64]*Subscription),
		logger: logger.Named("EventBus"),
	}
}

// Subscribe регистрирует подписчика на топик. buffer определяет емкость
// канала; при переполнении события теряются.
func (b *Bus) Subscribe(topic Topic, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 8
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		C:     make(chan Event, buffer),
		bus:   b,
		topic: topic,
		id:    b.nextID,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][sub.id] = sub
	return sub
}

// Publish рассылает событие всем подписчикам топика, не блокируясь.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[evt.Topic] {
		select {
		case sub.C <- evt:
		default:
			eventsDropped.WithLabelValues(string(evt.Topic)).Inc()
			b.logger.Warn("Subscriber channel full, event dropped",
				zap.String("topic", string(evt.Topic)),
				zap.String("userID", evt.UserID.String()),
			)
		}
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.subs[topic]; m != nil {
		delete(m, id)
	}
}

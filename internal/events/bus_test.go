package events_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := events.NewBus(zap.NewNop())
	userID := uuid.New()

	stories := bus.Subscribe(events.TopicStoryCreated, 4)
	projects := bus.Subscribe(events.TopicProjectChanged, 4)
	defer stories.Unsubscribe()
	defer projects.Unsubscribe()

	storyID := uuid.New()
	bus.Publish(events.Event{Topic: events.TopicStoryCreated, UserID: userID, StoryID: &storyID})

	select {
	case evt := <-stories.C:
		assert.Equal(t, events.TopicStoryCreated, evt.Topic)
		assert.Equal(t, userID, evt.UserID)
		require.NotNil(t, evt.StoryID)
		assert.Equal(t, storyID, *evt.StoryID)
	default:
		t.Fatal("подписчик топика не получил событие")
	}

	// Чужой топик события не видит.
	select {
	case <-projects.C:
		t.Fatal("событие попало в чужой топик")
	default:
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := events.NewBus(zap.NewNop())
	sub := bus.Subscribe(events.TopicStoryCreated, 1)
	defer sub.Unsubscribe()

	// Буфер на одно событие: второе должно молча отброситься,
	// а Publish - вернуться без блокировки.
	bus.Publish(events.Event{Topic: events.TopicStoryCreated, UserID: uuid.New()})
	bus.Publish(events.Event{Topic: events.TopicStoryCreated, UserID: uuid.New()})

	assert.Len(t, sub.C, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus(zap.NewNop())
	sub := bus.Subscribe(events.TopicProjectSelected, 2)

	sub.Unsubscribe()
	// Повторный Unsubscribe не паникует на закрытом канале.
	sub.Unsubscribe()

	bus.Publish(events.Event{Topic: events.TopicProjectSelected, UserID: uuid.New()})

	_, ok := <-sub.C
	assert.False(t, ok, "канал должен быть закрыт и пуст")
}

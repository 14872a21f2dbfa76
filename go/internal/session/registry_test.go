package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

func addStory(name string) func(models.Game) models.Game {
	return func(g models.Game) models.Game {
		g = g.Clone()
		g.BacklogStories = append(g.BacklogStories, models.NewBacklogStory(models.StoryInfo{Title: name}))
		return g
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry(Options{})
	admin := models.NewUser("alice")

	id := r.Create(admin)
	assert.Equal(t, 1, r.Len())

	g, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, g.ID)
	player, ok := g.Players.Get(admin.ID)
	require.True(t, ok)
	assert.True(t, player.IsAdmin())
	assert.True(t, player.Active)

	_, err = r.Get(models.NewGameID())
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(Options{})
	id := r.Create(models.NewUser("alice"))

	g, err := r.Get(id)
	require.NoError(t, err)
	g.BacklogStories = append(g.BacklogStories, models.NewBacklogStory(models.StoryInfo{Title: "local"}))

	again, err := r.Get(id)
	require.NoError(t, err)
	assert.Empty(t, again.BacklogStories)
}

func TestRegistry_MutateUnknownGame(t *testing.T) {
	r := NewRegistry(Options{})
	err := r.Mutate(models.NewGameID(), addStory("A"))
	assert.ErrorIs(t, err, ErrGameNotFound)

	err = r.Dispatch(models.NewGameID(), addStory("A"), []byte("msg"))
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, _, err = r.Join(models.NewGameID())
	assert.ErrorIs(t, err, ErrGameNotFound)

	_, err = r.Subscribers(models.NewGameID())
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRegistry_MutateDoesNotPublish(t *testing.T) {
	r := NewRegistry(Options{})
	id := r.Create(models.NewUser("alice"))
	_, sub, err := r.Join(id)
	require.NoError(t, err)

	require.NoError(t, r.Mutate(id, addStory("A")))

	g, err := r.Get(id)
	require.NoError(t, err)
	require.Len(t, g.BacklogStories, 1)
	assert.Empty(t, sub.C())
}

func TestRegistry_DispatchPublishesAfterMutation(t *testing.T) {
	var published []string
	r := NewRegistry(Options{
		OnPublish: func(_ models.GameID, msg []byte) {
			published = append(published, string(msg))
		},
	})
	id := r.Create(models.NewUser("alice"))

	snapshot, sub, err := r.Join(id)
	require.NoError(t, err)
	assert.Empty(t, snapshot.BacklogStories)
	n, err := r.Subscribers(id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.Dispatch(id, addStory("A"), []byte("added A")))
	require.NoError(t, r.Dispatch(id, addStory("B"), []byte("added B")))

	assert.Equal(t, "added A", string(receive(t, sub)))
	assert.Equal(t, "added B", string(receive(t, sub)))
	assert.Equal(t, []string{"added A", "added B"}, published)

	g, err := r.Get(id)
	require.NoError(t, err)
	require.Len(t, g.BacklogStories, 2)
}

func TestRegistry_JoinSeesOnlyLaterMessages(t *testing.T) {
	r := NewRegistry(Options{})
	id := r.Create(models.NewUser("alice"))
	require.NoError(t, r.Dispatch(id, addStory("A"), []byte("added A")))

	snapshot, sub, err := r.Join(id)
	require.NoError(t, err)
	require.Len(t, snapshot.BacklogStories, 1)

	require.NoError(t, r.Dispatch(id, addStory("B"), []byte("added B")))
	assert.Equal(t, "added B", string(receive(t, sub)))
	assert.Empty(t, sub.C())
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry(Options{})
	first := r.Create(models.NewUser("alice"))
	r.Create(models.NewUser("bob"))

	_, sub, err := r.Join(first)
	require.NoError(t, err)

	assert.Equal(t, 2, r.ResetAll())
	assert.Equal(t, 0, r.Len())
	requireClosed(t, sub)

	_, err = r.Get(first)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.Equal(t, 0, r.ResetAll())
}

func TestRegistry_SubscriberDropHook(t *testing.T) {
	var mu sync.Mutex
	drops := 0
	r := NewRegistry(Options{
		BufferSize: 1,
		OnSubscriberDropped: func() {
			mu.Lock()
			drops++
			mu.Unlock()
		},
	})
	id := r.Create(models.NewUser("alice"))
	_, sub, err := r.Join(id)
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(id, addStory("A"), []byte("1")))
	require.NoError(t, r.Dispatch(id, addStory("B"), []byte("2")))

	mu.Lock()
	assert.Equal(t, 1, drops)
	mu.Unlock()
	requireClosed(t, sub)
}

func TestRegistry_ConcurrentGames(t *testing.T) {
	r := NewRegistry(Options{})

	const games = 8
	const perGame = 50
	ids := make([]models.GameID, games)
	for i := range ids {
		ids[i] = r.Create(models.NewUser(fmt.Sprintf("admin-%d", i)))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func(id models.GameID) {
				defer wg.Done()
				for i := 0; i < perGame; i++ {
					assert.NoError(t, r.Mutate(id, addStory("story")))
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		g, err := r.Get(id)
		require.NoError(t, err)
		assert.Len(t, g.BacklogStories, 2*perGame)
	}
}

func TestRegistry_ConcurrentDispatchKeepsOneOrder(t *testing.T) {
	r := NewRegistry(Options{BufferSize: 1024})
	id := r.Create(models.NewUser("alice"))

	_, first, err := r.Join(id)
	require.NoError(t, err)
	_, second, err := r.Join(id)
	require.NoError(t, err)

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				title := fmt.Sprintf("%d-%d", w, i)
				assert.NoError(t, r.Dispatch(id, addStory(title), []byte(title)))
			}
		}(w)
	}
	wg.Wait()

	total := writers * perWriter
	seenFirst := make([]string, total)
	seenSecond := make([]string, total)
	for i := 0; i < total; i++ {
		seenFirst[i] = string(receive(t, first))
		seenSecond[i] = string(receive(t, second))
	}
	assert.Equal(t, seenFirst, seenSecond)

	g, err := r.Get(id)
	require.NoError(t, err)
	require.Len(t, g.BacklogStories, total)
	backlog := make([]string, total)
	for i, s := range g.BacklogStories {
		backlog[i] = s.Info.Title
	}
	assert.Equal(t, backlog, seenFirst, "messages follow the order of applied mutations")
}

func TestRegistry_BusyGameDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(Options{})
	busy := r.Create(models.NewUser("alice"))
	other := r.Create(models.NewUser("bob"))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- r.Mutate(busy, func(g models.Game) models.Game {
			close(entered)
			<-release
			return g
		})
	}()
	<-entered

	_, sub, err := r.Join(other)
	require.NoError(t, err)
	dispatched := make(chan error, 1)
	go func() {
		dispatched <- r.Dispatch(other, addStory("A"), []byte("added A"))
	}()

	select {
	case err := <-dispatched:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatch on another game blocked behind a busy game")
	}
	assert.Equal(t, "added A", string(receive(t, sub)))

	close(release)
	require.NoError(t, <-done)
}

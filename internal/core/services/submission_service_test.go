package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-relay-bot/internal/cache"
	"telegram-relay-bot/internal/collect"
	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/moderation"
	"telegram-relay-bot/internal/replay"
)

const (
	adminID  = int64(1)
	authorID = int64(42)
)

type submissionFixture struct {
	svc       *SubmissionService
	transport *fakeTransport
	bundles   *fakeBundles
	settings  *fakeSettings
	pending   *moderation.Store
}

func newSubmissionFixture(t *testing.T, admins ...int64) *submissionFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	transport := &fakeTransport{}
	bundles := newFakeBundles()
	settings := newFakeSettings(admins...)
	settings.AddChannel("@main")
	pending := moderation.NewStore()
	sessions := collect.NewSessionStore(10*time.Millisecond, time.Hour, nil)
	replayer := replay.NewEngine(transport, logger)

	svc := NewSubmissionService(transport, sessions, pending, bundles, settings, replayer, cache.NewChatCache(), "relay_bot", logger)
	return &submissionFixture{svc: svc, transport: transport, bundles: bundles, settings: settings, pending: pending}
}

func buffer(f *submissionFixture, userID int64, texts ...string) {
	for _, text := range texts {
		f.svc.Buffer(userID, domain.ContentItem{Type: domain.ItemText, Text: text}, "")
	}
}

func TestFinishAdminFastPath(t *testing.T) {
	f := newSubmissionFixture(t, adminID)
	buffer(f, adminID, "пост")

	outcome, err := f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)

	assert.True(t, outcome.Published)
	assert.Equal(t, 1, outcome.ItemCount)
	assert.True(t, strings.HasPrefix(outcome.Link, "https://t.me/relay_bot?start="), outcome.Link)

	// Контент ушел в канал (@main живет в чате 100), заявок не создано
	require.Len(t, f.transport.callsTo(100), 1)
	assert.Equal(t, 0, f.svc.PendingCount())

	count, err := f.bundles.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFinishEmptyBuffer(t *testing.T) {
	f := newSubmissionFixture(t, adminID)

	_, err := f.svc.Finish(context.Background(), authorID, authorID)
	assert.ErrorIs(t, err, ErrNothingToSubmit)
}

func TestFinishNoChannels(t *testing.T) {
	f := newSubmissionFixture(t, adminID)
	f.settings.channels = nil
	buffer(f, adminID, "пост")

	_, err := f.svc.Finish(context.Background(), adminID, adminID)
	assert.ErrorIs(t, err, ErrNoChannels)
}

func TestFinishSendsToModeration(t *testing.T) {
	f := newSubmissionFixture(t, 1, 2, 3)
	buffer(f, authorID, "на проверку")

	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	assert.False(t, outcome.Published)
	assert.NotEmpty(t, outcome.SubmissionID)
	assert.Equal(t, 1, f.svc.PendingCount())

	// Уведомлены все три администратора
	notices := f.transport.callsOf("SendReviewNotice")
	require.Len(t, notices, 3)
	notified := []int64{notices[0].chatID, notices[1].chatID, notices[2].chatID}
	assert.ElementsMatch(t, []int64{1, 2, 3}, notified)

	// Каждому администратору показано содержимое заявки
	adminTexts := f.transport.callsOf("SendText")
	require.Len(t, adminTexts, 3)
	assert.Equal(t, "на проверку", adminTexts[0].text)

	// Ничего не опубликовано до вердикта
	assert.Empty(t, f.transport.callsTo(100))
}

func TestVerdictApprove(t *testing.T) {
	f := newSubmissionFixture(t, 1, 2)
	buffer(f, authorID, "на проверку")
	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Verdict(context.Background(), 1, outcome.SubmissionID, true))

	// Публикация состоялась, автору ушла ссылка
	assert.NotEmpty(t, f.transport.callsTo(100))
	links := f.transport.callsOf("SendLinkButton")
	require.Len(t, links, 1)
	assert.Equal(t, authorID, links[0].chatID)
	assert.Contains(t, links[0].extra, "https://t.me/relay_bot?start=")

	// Уведомления обоих администраторов обновлены с именем решившего
	edits := f.transport.callsOf("EditMessageText")
	require.Len(t, edits, 2)
	for _, e := range edits {
		assert.Contains(t, e.text, "одобрена")
		assert.Contains(t, e.text, "1")
	}

	assert.Equal(t, 0, f.svc.PendingCount())
}

func TestVerdictReject(t *testing.T) {
	f := newSubmissionFixture(t, 1)
	buffer(f, authorID, "на проверку")
	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Verdict(context.Background(), 1, outcome.SubmissionID, false))

	// Ничего не опубликовано, автор уведомлен об отклонении
	assert.Empty(t, f.transport.callsTo(100))
	authorMsgs := f.transport.callsTo(authorID)
	require.NotEmpty(t, authorMsgs)
	assert.Contains(t, authorMsgs[len(authorMsgs)-1].text, "отклонена")

	count, err := f.bundles.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// Побеждает первый вердикт: второй администратор получает ErrAlreadyHandled,
// публикация происходит ровно один раз.
func TestVerdictFirstWins(t *testing.T) {
	f := newSubmissionFixture(t, 1, 2)
	buffer(f, authorID, "на проверку")
	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Verdict(context.Background(), 1, outcome.SubmissionID, true))
	err = f.svc.Verdict(context.Background(), 2, outcome.SubmissionID, false)
	assert.ErrorIs(t, err, ErrAlreadyHandled)

	count, err := f.bundles.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Гонка вердиктов: при одновременных решениях публикация все равно одна.
func TestVerdictConcurrent(t *testing.T) {
	f := newSubmissionFixture(t, 1, 2, 3, 4)
	buffer(f, authorID, "на проверку")
	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Verdict(context.Background(), int64(i+1), outcome.SubmissionID, true)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyHandled)
		}
	}
	assert.Equal(t, 1, winners)

	count, err := f.bundles.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVerdictPermissions(t *testing.T) {
	f := newSubmissionFixture(t, 1)
	buffer(f, authorID, "на проверку")
	outcome, err := f.svc.Finish(context.Background(), authorID, authorID)
	require.NoError(t, err)

	err = f.svc.Verdict(context.Background(), authorID, outcome.SubmissionID, true)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	// Заявка не изъята посторонним
	assert.Equal(t, 1, f.svc.PendingCount())
}

func TestVerdictUnknownSubmission(t *testing.T) {
	f := newSubmissionFixture(t, 1)
	err := f.svc.Verdict(context.Background(), 1, "никогда-не-существовала", true)
	assert.ErrorIs(t, err, ErrAlreadyHandled)
}

func TestPublishBackupChannels(t *testing.T) {
	f := newSubmissionFixture(t, adminID)
	f.settings.AddBackupChannel("@backup")
	buffer(f, adminID, "пост")

	outcome, err := f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)

	// Контент ушел в основной канал (чат 100)
	assert.NotEmpty(t, f.transport.callsTo(100))

	// Резервный канал (чат 200) получает ссылку, а не сам контент
	backupCalls := f.transport.callsTo(200)
	require.Len(t, backupCalls, 1)
	assert.Equal(t, "SendText", backupCalls[0].method)
	assert.Contains(t, backupCalls[0].text, outcome.Link)
	assert.NotContains(t, backupCalls[0].text, "пост")
}

// Разрешение канала кэшируется между публикациями, а отвязка сбрасывает кэш.
func TestChannelResolutionCache(t *testing.T) {
	f := newSubmissionFixture(t, adminID)

	buffer(f, adminID, "первый")
	_, err := f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.getChatCount())

	buffer(f, adminID, "второй")
	_, err = f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.getChatCount(), "повторная публикация использует кэш")

	f.svc.InvalidateChannel("@main")

	buffer(f, adminID, "третий")
	_, err = f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.transport.getChatCount(), "после сброса канал разрешается заново")
}

func TestDeliver(t *testing.T) {
	t.Run("Выдача существующего бандла", func(t *testing.T) {
		f := newSubmissionFixture(t, adminID)
		id, err := f.bundles.Put(context.Background(), []domain.Entry{
			domain.ItemEntry(domain.ContentItem{Type: domain.ItemText, Text: "контент"}),
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.Deliver(context.Background(), authorID, "author", id))

		msgs := f.transport.callsTo(authorID)
		require.Len(t, msgs, 1)
		assert.Equal(t, "контент", msgs[0].text)
	})

	t.Run("Недействительная ссылка", func(t *testing.T) {
		f := newSubmissionFixture(t, adminID)
		err := f.svc.Deliver(context.Background(), authorID, "author", "мертвая-ссылка")
		assert.ErrorIs(t, err, ErrBundleNotFound)
	})

	t.Run("Подписка обязательна и отсутствует", func(t *testing.T) {
		f := newSubmissionFixture(t, adminID)
		f.settings.SetForceFollow(domain.ForceFollowConfig{Enabled: true, ChannelID: "@news", ChannelUsername: "news"})
		f.transport.memberStatus = "left"

		id, err := f.bundles.Put(context.Background(), []domain.Entry{
			domain.ItemEntry(domain.ContentItem{Type: domain.ItemText, Text: "контент"}),
		})
		require.NoError(t, err)

		err = f.svc.Deliver(context.Background(), authorID, "author", id)
		assert.ErrorIs(t, err, ErrFollowRequired)
		assert.Empty(t, f.transport.callsTo(authorID))
	})

	t.Run("Подписка есть: контент выдан, статистика записана", func(t *testing.T) {
		f := newSubmissionFixture(t, adminID)
		f.settings.SetForceFollow(domain.ForceFollowConfig{Enabled: true, ChannelID: "@news", ChannelUsername: "news"})
		f.transport.memberStatus = "member"

		id, err := f.bundles.Put(context.Background(), []domain.Entry{
			domain.ItemEntry(domain.ContentItem{Type: domain.ItemText, Text: "контент"}),
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.Deliver(context.Background(), authorID, "author", id))
		assert.NotEmpty(t, f.transport.callsTo(authorID))
		assert.Equal(t, 1, f.settings.FollowStats().TotalFollows)
	})

	t.Run("Сбой проверки подписки трактуется как ее отсутствие", func(t *testing.T) {
		f := newSubmissionFixture(t, adminID)
		f.settings.SetForceFollow(domain.ForceFollowConfig{Enabled: true, ChannelID: "@news"})
		f.transport.memberErr = errTransportDown

		err := f.svc.Deliver(context.Background(), authorID, "author", "любой")
		assert.ErrorIs(t, err, ErrFollowRequired)
	})
}

func TestFinishCollapsesAlbum(t *testing.T) {
	f := newSubmissionFixture(t, adminID)

	f.svc.Buffer(adminID, domain.ContentItem{Type: domain.ItemPhoto, FileID: "p1"}, "alb")
	f.svc.Buffer(adminID, domain.ContentItem{Type: domain.ItemPhoto, FileID: "p2"}, "alb")

	outcome, err := f.svc.Finish(context.Background(), adminID, adminID)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.ItemCount)

	// Альбом ушел в канал одним вызовом SendMediaGroup
	groups := f.transport.callsOf("SendMediaGroup")
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].items)
}

package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-sketch/internal/infra/persistence/memory"
	"collaborative-sketch/internal/repository"
)

func TestEventLog_Append_SeqStrictlyIncreasing(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()

	// 连续追加，序列号必须严格递增且无空洞
	for i := 1; i <= 10; i++ {
		event, err := log.Append(ctx, 1, 7, json.RawMessage(`{"stroke":1}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), event.Seq)
		assert.Equal(t, uint(1), event.RoomID)
		assert.Equal(t, uint(7), event.UserID)
		assert.False(t, event.Timestamp.IsZero(), "时间戳应由服务端分配")
	}
}

func TestEventLog_Append_SeqScopedPerRoom(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()

	// 不同房间的序列号互相独立
	evtA, err := log.Append(ctx, 1, 1, json.RawMessage(`{}`))
	require.NoError(t, err)
	evtB, err := log.Append(ctx, 2, 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), evtA.Seq)
	assert.Equal(t, uint64(1), evtB.Seq)
}

func TestEventLog_Append_ConcurrentNoDuplicates(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()
	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := log.Append(ctx, 1, userID, json.RawMessage(`{"x":1}`))
				assert.NoError(t, err)
			}
		}(uint(w + 1))
	}
	wg.Wait()

	// 全量读取后检查：无重复、无空洞
	events, err := log.Recent(ctx, 1, writers*perWriter)
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)
	seen := make(map[uint64]bool)
	for _, event := range events {
		assert.False(t, seen[event.Seq], "序列号 %d 重复", event.Seq)
		seen[event.Seq] = true
	}
	for i := 1; i <= writers*perWriter; i++ {
		assert.True(t, seen[uint64(i)], "序列号 %d 缺失", i)
	}
}

func TestEventLog_Recent_NewestFirstAndCapped(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := log.Append(ctx, 3, 1, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	events, err := log.Recent(ctx, 3, 50)
	require.NoError(t, err)
	require.Len(t, events, 50, "最多返回 limit 条")

	// 最新在前，且内容是完整追加序的一个后缀 (seq 60..11)
	for i, event := range events {
		assert.Equal(t, uint64(60-i), event.Seq)
	}
}

func TestEventLog_Recent_EmptyRoom(t *testing.T) {
	log := memory.NewEventLog()

	events, err := log.Recent(context.Background(), 99, 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventLog_Unavailable(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()
	log.SetUnavailable(true)

	_, err := log.Append(ctx, 1, 1, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrStoreUnavailable))

	_, err = log.Recent(ctx, 1, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrStoreUnavailable))

	// 恢复后应继续工作
	log.SetUnavailable(false)
	event, err := log.Append(ctx, 1, 1, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), event.Seq)
}

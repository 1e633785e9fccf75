package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_JoinAndMembers(t *testing.T) {
	// Arrange
	registry := NewRegistry()
	alice := NewClient("conn-a", testParticipant(1), nil, nil)
	bob := NewClient("conn-b", testParticipant(2), nil, nil)

	// Act
	registry.Join(7, alice)
	registry.Join(7, bob)
	registry.Join(9, alice)

	// Assert
	assert.Equal(t, 2, registry.MemberCount(7))
	assert.Equal(t, 1, registry.MemberCount(9))
	assert.ElementsMatch(t, []*Client{alice, bob}, registry.Members(7))
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	// Arrange
	registry := NewRegistry()
	alice := NewClient("conn-a", testParticipant(1), nil, nil)
	registry.Join(7, alice)

	// Act: 重复离开和离开未加入的房间都不应出错
	registry.Leave(7, alice)
	registry.Leave(7, alice)
	registry.Leave(42, alice)

	// Assert
	assert.Equal(t, 0, registry.MemberCount(7))
	assert.Nil(t, registry.Members(7))
}

func TestRegistry_EmptyRoomIsPruned(t *testing.T) {
	// Arrange
	registry := NewRegistry()
	alice := NewClient("conn-a", testParticipant(1), nil, nil)
	bob := NewClient("conn-b", testParticipant(2), nil, nil)
	registry.Join(7, alice)
	registry.Join(7, bob)

	// Act
	registry.Leave(7, alice)
	assert.Equal(t, 1, registry.RoomCount())
	registry.Leave(7, bob)

	// Assert: 最后一个成员离开后房间被回收
	assert.Equal(t, 0, registry.RoomCount())
}

func TestRegistry_MembersReturnsSnapshot(t *testing.T) {
	// Arrange
	registry := NewRegistry()
	alice := NewClient("conn-a", testParticipant(1), nil, nil)
	registry.Join(7, alice)

	// Act
	snapshot := registry.Members(7)
	registry.Leave(7, alice)

	// Assert: 已获取的快照不受后续离开影响
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 0, registry.MemberCount(7))
}

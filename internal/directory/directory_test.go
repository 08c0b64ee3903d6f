package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryPutAndAddressOf(t *testing.T) {
	d := NewDirectory()
	d.Put("pkA", "S1:4678")

	addr, ok := d.AddressOf("pkA")
	require.True(t, ok)
	assert.Equal(t, "S1:4678", addr)
}

func TestDirectoryLastWriteWins(t *testing.T) {
	d := NewDirectory()
	d.Put("pkA", "S1:4678")
	d.Put("pkA", "S2:4679")

	addr, ok := d.AddressOf("pkA")
	require.True(t, ok)
	assert.Equal(t, "S2:4679", addr)

	snap := d.Snapshot()
	assert.Empty(t, snap["S1:4678"])
	assert.Equal(t, []string{"pkA"}, snap["S2:4679"])
}

func TestReplacePartitionExactness(t *testing.T) {
	d := NewDirectory()
	d.ReplacePartition("S2:4679", []string{"pkA", "pkB"})
	d.ReplacePartition("S2:4679", []string{"pkC"})

	snap := d.Snapshot()
	assert.ElementsMatch(t, []string{"pkC"}, snap["S2:4679"])

	_, ok := d.AddressOf("pkA")
	assert.False(t, ok)
	_, ok = d.AddressOf("pkB")
	assert.False(t, ok)
}

func TestReplacePartitionDoesNotTouchOtherPeers(t *testing.T) {
	d := NewDirectory()
	d.ReplacePartition("S1:4678", []string{"pkA"})
	d.ReplacePartition("S2:4679", []string{"pkB"})
	d.ReplacePartition("S2:4679", []string{"pkC"})

	addr, ok := d.AddressOf("pkA")
	require.True(t, ok)
	assert.Equal(t, "S1:4678", addr)
}

func TestPurgePeerRemovesAllEntries(t *testing.T) {
	d := NewDirectory()
	d.ReplacePartition("S2:4679", []string{"pkA", "pkB"})
	d.PurgePeer("S2:4679")

	_, ok := d.AddressOf("pkA")
	assert.False(t, ok)
	_, ok = d.AddressOf("pkB")
	assert.False(t, ok)

	snap := d.Snapshot()
	assert.NotContains(t, snap, "S2:4679")
}

func TestAllKeys(t *testing.T) {
	d := NewDirectory()
	d.Put("pkA", "S1:4678")
	d.Put("pkB", "S2:4679")

	keys := d.AllKeys()
	assert.ElementsMatch(t, []string{"pkA", "pkB"}, keys)
}

func TestCounterTrackerAcceptsIncreasing(t *testing.T) {
	c := NewCounterTracker()
	assert.True(t, c.Accept("fpA", 1))
	assert.True(t, c.Accept("fpA", 2))
	assert.True(t, c.Accept("fpA", 1002))
}

func TestCounterTrackerRejectsReplay(t *testing.T) {
	c := NewCounterTracker()
	require.True(t, c.Accept("fpA", 5))
	assert.False(t, c.Accept("fpA", 5))
	assert.False(t, c.Accept("fpA", 4))
}

func TestCounterTrackerCounterJumpThenRejectsGap(t *testing.T) {
	c := NewCounterTracker()
	require.True(t, c.Accept("fpA", 1))
	require.True(t, c.Accept("fpA", 1001))
	assert.False(t, c.Accept("fpA", 1000))
}

func TestCounterTrackerForget(t *testing.T) {
	c := NewCounterTracker()
	c.Accept("fpA", 5)
	c.Forget("fpA")

	_, ok := c.Last("fpA")
	assert.False(t, ok)
	assert.True(t, c.Accept("fpA", 1))
}

func TestSeenIDsDedup(t *testing.T) {
	s := NewSeenIDs()
	assert.True(t, s.CheckAndRecord("id-1"))
	assert.False(t, s.CheckAndRecord("id-1"))
	assert.True(t, s.CheckAndRecord("id-2"))
}

func TestLocalClientsSetUpdatesOnRepeatHello(t *testing.T) {
	l := NewLocalClients()
	l.Set("conn-1", "pkOld")
	l.Set("conn-1", "pkNew")

	key, ok := l.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "pkNew", key)
	assert.Equal(t, 1, l.Count())
}

func TestLocalClientsRemove(t *testing.T) {
	l := NewLocalClients()
	l.Set("conn-1", "pkA")
	key, ok := l.Remove("conn-1")
	require.True(t, ok)
	assert.Equal(t, "pkA", key)
	assert.Equal(t, 0, l.Count())
}

func TestPeerTableAnnounceAndForget(t *testing.T) {
	p := NewPeerTable()
	assert.False(t, p.IsAnnounced("S2:4679"))

	p.Announce("S2:4679")
	assert.True(t, p.IsAnnounced("S2:4679"))

	p.SetOutbound("S2:4679", "conn-7")
	id, ok := p.Outbound("S2:4679")
	require.True(t, ok)
	assert.Equal(t, "conn-7", id)

	p.Forget("S2:4679")
	assert.False(t, p.IsAnnounced("S2:4679"))
	_, ok = p.Outbound("S2:4679")
	assert.False(t, ok)
}

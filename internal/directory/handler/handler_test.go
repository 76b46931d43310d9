package handler

import (
	"net/netip"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peershare/internal/directory/store"
	"github.com/dep2p/go-peershare/pkg/protocol"
)

var (
	aliceAddr = netip.MustParseAddrPort("192.168.1.10:40001")
	bobAddr   = netip.MustParseAddrPort("192.168.1.11:40002")
)

func setup(t *testing.T) (*Handler, *store.Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	s := store.New(clk)
	return New(s), s, clk
}

func handle(h *Handler, src netip.AddrPort, msg string) Result {
	return h.Handle(src, []byte(msg))
}

// TestHandle_Register 测试注册与用户查询
func TestHandle_Register(t *testing.T) {
	h, _, _ := setup(t)

	res := handle(h, aliceAddr, "register alice 50001")
	assert.Equal(t, Result{Kind: protocol.KindRegister, Reply: true, Payload: "Registration successful"}, res)

	res = handle(h, bobAddr, "register bob 50002")
	require.True(t, res.Reply)

	res = handle(h, aliceAddr, "query users")
	assert.True(t, res.Reply)
	assert.Equal(t, "Active users:\nalice\nbob\n", res.Payload)
}

// TestHandle_EmptyListings 测试空注册表的查询回复
func TestHandle_EmptyListings(t *testing.T) {
	h, _, _ := setup(t)

	assert.Equal(t, "No active users.", handle(h, aliceAddr, "query users").Payload)
	assert.Equal(t, "No resources available.", handle(h, aliceAddr, "query resources").Payload)
	assert.Equal(t, "Error: Resource 'x.txt' not found.", handle(h, aliceAddr, "get resource_info x.txt").Payload)
}

// TestHandle_Announce 测试资源发布与查询
func TestHandle_Announce(t *testing.T) {
	h, _, _ := setup(t)

	handle(h, aliceAddr, "register alice 50001")
	handle(h, bobAddr, "register bob 50002")

	res := handle(h, aliceAddr, "announce movie.mp4 alice")
	assert.Equal(t, Result{Kind: protocol.KindAnnounce, Reply: true, Payload: "Resource announced successfully"}, res)
	handle(h, bobAddr, "announce movie.mp4 bob")
	handle(h, bobAddr, "announce notes.txt bob")

	res = handle(h, aliceAddr, "query resources")
	assert.Equal(t, "Resources:\n"+
		"movie.mp4 (Owner: alice, IP: 192.168.1.10, TCP Port: 50001)\n"+
		"movie.mp4 (Owner: bob, IP: 192.168.1.11, TCP Port: 50002)\n"+
		"notes.txt (Owner: bob, IP: 192.168.1.11, TCP Port: 50002)\n", res.Payload)

	res = handle(h, aliceAddr, "get resource_info movie.mp4")
	assert.Equal(t, "alice 192.168.1.10 50001\nbob 192.168.1.11 50002\n", res.Payload)
}

// TestHandle_AnnounceUnknownOwner 测试未注册持有者的资源不可见
func TestHandle_AnnounceUnknownOwner(t *testing.T) {
	h, _, _ := setup(t)

	res := handle(h, aliceAddr, "announce ghost.bin mallory")
	assert.True(t, res.Reply)
	assert.Equal(t, "No resources available.", handle(h, aliceAddr, "query resources").Payload)
}

// TestHandle_DemotionAndReactivation 测试降级后资源不可见，应答后恢复活跃
func TestHandle_DemotionAndReactivation(t *testing.T) {
	h, s, clk := setup(t)

	handle(h, aliceAddr, "register alice 50001")
	handle(h, aliceAddr, "announce a.txt alice")

	clk.Add(20 * time.Second)
	require.Equal(t, []string{"alice"}, s.SweepExpired(clk.Now(), 15*time.Second))

	assert.Equal(t, "No resources available.", handle(h, bobAddr, "query resources").Payload)
	assert.Equal(t, "Error: Resource 'a.txt' not found.", handle(h, bobAddr, "get resource_info a.txt").Payload)
	assert.Equal(t, "No active users.", handle(h, bobAddr, "query users").Payload)

	res := handle(h, aliceAddr, "hello response")
	assert.Equal(t, Result{Kind: protocol.KindLivenessReply}, res)
	assert.Equal(t, "Active users:\nalice\n", handle(h, bobAddr, "query users").Payload)
}

// TestHandle_LivenessReplyUnknown 测试未知地址的存活应答被忽略
func TestHandle_LivenessReplyUnknown(t *testing.T) {
	h, s, _ := setup(t)

	res := handle(h, bobAddr, "hello response")
	assert.False(t, res.Reply)
	assert.Empty(t, s.ActivePeers())
}

// TestHandle_Dropped 测试无法识别的数据报不产生回复
func TestHandle_Dropped(t *testing.T) {
	h, s, _ := setup(t)

	for _, msg := range []string{
		"",
		"   ",
		"hello",
		"register",
		"register alice",
		"register alice notaport",
		"register alice 0",
		"announce onlyname",
		"query",
		"query everything",
		"get",
		"get resource_info",
		"get something else",
		"delete a.txt",
	} {
		res := handle(h, aliceAddr, msg)
		assert.False(t, res.Reply, "message %q", msg)
		assert.Empty(t, res.Payload, "message %q", msg)
	}
	assert.Empty(t, s.Peers())
}

// Package store 实现目录服务的内存注册表
//
// Store 是节点表和资源表的唯一持有者。两张表由同一把读写锁保护，
// 资源查询（需要解析持有者地址）与存活清理（需要删除资源）
// 不存在两把锁之间的获取顺序问题。
//
// 所有操作都不会失败：未知持有者、未见过的地址等输入退化为空操作。
package store

import (
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("directory/store")

// ============================================================================
//                              记录
// ============================================================================

// peerRecord 节点记录，创建后从不删除
type peerRecord struct {
	identity     string
	controlAddr  netip.AddrPort
	transferPort int
	status       types.PeerStatus
	lastResponse time.Time
	registeredAt time.Time
}

func (r *peerRecord) info() types.PeerInfo {
	return types.PeerInfo{
		Identity:     r.identity,
		ControlAddr:  r.controlAddr,
		TransferPort: r.transferPort,
		Status:       r.status,
		LastResponse: r.lastResponse,
		RegisteredAt: r.registeredAt,
	}
}

func (r *peerRecord) owner() types.Owner {
	return types.Owner{
		Identity: r.identity,
		Address:  r.controlAddr.Addr(),
		Port:     r.transferPort,
	}
}

// resourceRecord 资源记录，持有者按名称反向引用
type resourceRecord struct {
	name  string
	owner string
}

// ============================================================================
//                              Store
// ============================================================================

// Store 目录注册表
type Store struct {
	clock clock.Clock

	mu sync.RWMutex

	// peers 按注册顺序排列；byIdentity 为同一批记录的索引
	peers      []*peerRecord
	byIdentity map[string]*peerRecord

	// resources 按发布顺序排列；announced 用于 (name, owner) 去重
	resources []resourceRecord
	announced map[resourceRecord]struct{}

	// 统计
	demotions uint64
}

// New 创建空注册表，clk 为 nil 时使用系统时钟
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clock:      clk,
		byIdentity: make(map[string]*peerRecord),
		announced:  make(map[resourceRecord]struct{}),
	}
}

// ============================================================================
//                              写操作
// ============================================================================

// Register 登记节点，状态置为活跃，最近响应时间为当前时间
//
// 已存在的身份原地刷新（地址、端口、状态、时间），保留其注册顺序。
func (s *Store) Register(identity string, addr netip.AddrPort, transferPort int) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byIdentity[identity]; ok {
		log.Debug("peer re-registered",
			"identity", identity,
			"oldAddr", rec.controlAddr,
			"newAddr", addr)
		rec.controlAddr = addr
		rec.transferPort = transferPort
		rec.status = types.PeerStatusActive
		rec.lastResponse = now
		return
	}

	rec := &peerRecord{
		identity:     identity,
		controlAddr:  addr,
		transferPort: transferPort,
		status:       types.PeerStatusActive,
		lastResponse: now,
		registeredAt: now,
	}
	s.peers = append(s.peers, rec)
	s.byIdentity[identity] = rec
}

// AddResource 发布资源，持有者未知时同样记录
//
// 同一持有者重复发布同名资源只保留一条。
func (s *Store) AddResource(name, owner string) {
	key := resourceRecord{name: name, owner: owner}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.announced[key]; dup {
		return
	}
	s.announced[key] = struct{}{}
	s.resources = append(s.resources, key)
}

// MarkAlive 处理来自 addr 的存活应答
//
// 控制地址完全匹配的记录被置为活跃并刷新时间。没有匹配时返回 false。
func (s *Store) MarkAlive(addr netip.AddrPort) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	for _, rec := range s.peers {
		if rec.controlAddr != addr {
			continue
		}
		if rec.status != types.PeerStatusActive {
			log.Info("peer reactivated", "identity", rec.identity, "addr", addr)
		}
		rec.status = types.PeerStatusActive
		rec.lastResponse = now
		matched = true
	}
	return matched
}

// SweepExpired 降级超时节点并清理其资源，返回被降级的身份
//
// 活跃节点满足 now - lastResponse > timeout 时置为不活跃。
func (s *Store) SweepExpired(now time.Time, timeout time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var demoted []string
	expired := make(map[string]struct{})
	for _, rec := range s.peers {
		if rec.status == types.PeerStatusActive && now.Sub(rec.lastResponse) > timeout {
			rec.status = types.PeerStatusInactive
			demoted = append(demoted, rec.identity)
			expired[rec.identity] = struct{}{}
		}
	}
	if len(demoted) == 0 {
		return nil
	}

	kept := s.resources[:0]
	for _, res := range s.resources {
		if _, gone := expired[res.owner]; gone {
			delete(s.announced, res)
			continue
		}
		kept = append(kept, res)
	}
	// 清零截断尾部
	clear(s.resources[len(kept):])
	s.resources = kept
	s.demotions += uint64(len(demoted))

	return demoted
}

// ============================================================================
//                              查询操作
// ============================================================================

// ActivePeers 返回活跃节点身份，按注册顺序
func (s *Store) ActivePeers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, rec := range s.peers {
		if rec.status == types.PeerStatusActive {
			ids = append(ids, rec.identity)
		}
	}
	return ids
}

// ActiveEndpoints 返回活跃节点的探测目标
func (s *Store) ActiveEndpoints() []types.PeerEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var eps []types.PeerEndpoint
	for _, rec := range s.peers {
		if rec.status == types.PeerStatusActive {
			eps = append(eps, types.PeerEndpoint{Identity: rec.identity, ControlAddr: rec.controlAddr})
		}
	}
	return eps
}

// Resources 返回持有者活跃的资源，按发布顺序
//
// 持有者不活跃或未知的资源被跳过，但不会因此被删除。
func (s *Store) Resources() []types.ResourceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []types.ResourceEntry
	for _, res := range s.resources {
		if rec, ok := s.activeOwner(res.owner); ok {
			entries = append(entries, types.ResourceEntry{Name: res.name, Owner: rec.owner()})
		}
	}
	return entries
}

// Owners 返回某资源的活跃持有者
//
// 资源从未发布与所有持有者都不活跃两种情况都返回空。
func (s *Store) Owners(name string) []types.Owner {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owners []types.Owner
	for _, res := range s.resources {
		if res.name != name {
			continue
		}
		if rec, ok := s.activeOwner(res.owner); ok {
			owners = append(owners, rec.owner())
		}
	}
	return owners
}

// activeOwner 解析持有者记录，调用方必须持有 mu
func (s *Store) activeOwner(identity string) (*peerRecord, bool) {
	rec, ok := s.byIdentity[identity]
	if !ok || rec.status != types.PeerStatusActive {
		return nil, false
	}
	return rec, true
}

// Peers 返回全部节点记录的快照，按注册顺序
func (s *Store) Peers() []types.PeerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]types.PeerInfo, 0, len(s.peers))
	for _, rec := range s.peers {
		infos = append(infos, rec.info())
	}
	return infos
}

// Peer 返回指定身份的记录
func (s *Store) Peer(identity string) (types.PeerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byIdentity[identity]
	if !ok {
		return types.PeerInfo{}, false
	}
	return rec.info(), true
}

// ============================================================================
//                              统计
// ============================================================================

// Stats 注册表统计
type Stats struct {
	TotalPeers  int
	ActivePeers int
	Resources   int
	Demotions   uint64
}

// Stats 返回统计信息
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalPeers: len(s.peers),
		Resources:  len(s.resources),
		Demotions:  s.demotions,
	}
	for _, rec := range s.peers {
		if rec.status == types.PeerStatusActive {
			st.ActivePeers++
		}
	}
	return st
}

package auth

import (
	"hash/crc32"
	"slices"
	"strconv"
	"sync"
)

const defaultRingNode = "auth-node-default"

// ConsistentHashRing 一致性哈希环，给令牌缓存键分配节点前缀
type ConsistentHashRing struct {
	mu       sync.RWMutex
	replicas int
	points   []uint32 // 已排序的虚拟节点
	owner    map[uint32]string
	nodes    map[string]struct{}
}

// NewConsistentHashRing nodes 为空时使用一个默认节点
func NewConsistentHashRing(nodes []string, replicas int) *ConsistentHashRing {
	if replicas <= 0 {
		replicas = 50
	}
	if len(nodes) == 0 {
		nodes = []string{defaultRingNode}
	}
	r := &ConsistentHashRing{
		replicas: replicas,
		owner:    make(map[uint32]string),
		nodes:    make(map[string]struct{}),
	}
	r.Add(nodes...)
	return r
}

func virtualPoint(node string, i int) uint32 {
	return crc32.ChecksumIEEE([]byte(node + "#" + strconv.Itoa(i)))
}

// Add 加入节点，重复节点忽略
func (r *ConsistentHashRing) Add(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		if _, ok := r.nodes[node]; ok || node == "" {
			continue
		}
		r.nodes[node] = struct{}{}
		for i := 0; i < r.replicas; i++ {
			p := virtualPoint(node, i)
			if _, taken := r.owner[p]; taken {
				continue
			}
			r.owner[p] = node
			r.points = append(r.points, p)
		}
	}
	slices.Sort(r.points)
}

// Remove 移除节点，其负责的键顺延到下一个节点
func (r *ConsistentHashRing) Remove(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[node]; !ok {
		return
	}
	delete(r.nodes, node)
	r.points = slices.DeleteFunc(r.points, func(p uint32) bool {
		if r.owner[p] == node {
			delete(r.owner, p)
			return true
		}
		return false
	})
}

// Nodes 当前节点数
func (r *ConsistentHashRing) Nodes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// GetNode 顺时针找到第一个虚拟节点
func (r *ConsistentHashRing) GetNode(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return ""
	}
	h := crc32.ChecksumIEEE([]byte(key))
	idx, _ := slices.BinarySearch(r.points, h)
	if idx == len(r.points) {
		idx = 0
	}
	return r.owner[r.points[idx]]
}

package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// keyLocks 按 (tag, filename) 哈希分片的互斥锁，只在提交阶段持有.
// 不同键可能落到同一分片，持锁时间很短，可以接受.
type keyLocks struct {
	stripes []sync.Mutex
}

func newKeyLocks(n int) *keyLocks {
	if n <= 0 {
		n = 1
	}

	return &keyLocks{stripes: make([]sync.Mutex, n)}
}

// lock 锁定键并返回解锁函数.
func (k *keyLocks) lock(tag, filename string) func() {
	d := xxhash.New()
	_, _ = d.WriteString(tag)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(filename)

	m := &k.stripes[d.Sum64()%uint64(len(k.stripes))]
	m.Lock()

	return m.Unlock
}

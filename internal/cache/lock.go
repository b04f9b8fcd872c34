package cache

import "github.com/bamsammich/bucketctl/internal/remote"

// TryLockPath acquires the listing lock for path on behalf of owner. If
// another owner holds it, owner is queued and false is returned; the lock
// is later handed over through owner.OnLockObtained. Re-locking a path
// already held by owner succeeds.
func (c *Cache) TryLockPath(path remote.Path, owner LockOwner) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := path.String()
	lock, ok := c.locks[key]
	if !ok {
		c.locks[key] = &pathLock{holder: owner}
		return true
	}
	if lock.holder == owner {
		return true
	}
	for _, w := range lock.waiters {
		if w == owner {
			return false
		}
	}
	lock.waiters = append(lock.waiters, owner)
	return false
}

// UnlockPath releases owner's hold on path, or withdraws it from the wait
// queue. A released lock passes to the oldest waiter.
func (c *Cache) UnlockPath(path remote.Path, owner LockOwner) {
	next := c.unlock(path.String(), owner)
	if next != nil {
		next.OnLockObtained(path)
	}
}

func (c *Cache) unlock(key string, owner LockOwner) LockOwner {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[key]
	if !ok {
		return nil
	}

	if lock.holder != owner {
		for i, w := range lock.waiters {
			if w == owner {
				lock.waiters = append(lock.waiters[:i:i], lock.waiters[i+1:]...)
				break
			}
		}
		return nil
	}

	if len(lock.waiters) == 0 {
		delete(c.locks, key)
		return nil
	}
	lock.holder = lock.waiters[0]
	lock.waiters = lock.waiters[1:]
	return lock.holder
}

// IsLocked reports whether any owner holds the lock for path.
func (c *Cache) IsLocked(path remote.Path) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locks[path.String()]
	return ok
}

package control

import (
	"fmt"
	"math"
	"time"

	"github.com/bamsammich/bucketctl/internal/ratelimit"
	"github.com/bamsammich/bucketctl/internal/reply"
)

// requestQuota answers the backend's request for bandwidth in direction d.
// With no budget available the answer is deferred until the limiter
// refills.
func (s *Socket) requestQuota(d ratelimit.Direction) {
	if s.limiter.Unlimited(d) {
		s.sendQuota(fmt.Sprintf("-%d-", d))
		return
	}

	granted, wait := s.limiter.Request(d, math.MaxInt32)
	if granted > 0 {
		s.sendQuota(fmt.Sprintf("-%d%d,%d", d, granted, s.limiter.Limit(d)))
		return
	}

	if s.quotaTimers[d] != nil {
		return
	}
	s.log.Debug("waiting for bandwidth quota", "direction", d, "wait", wait)
	instance := s.instance
	s.quotaTimers[d] = time.AfterFunc(wait, func() {
		s.post(Notice{Kind: NoticeQuotaAvailable, Instance: instance, Direction: d})
	})
}

func (s *Socket) quotaAvailable(d ratelimit.Direction) {
	s.quotaTimers[d] = nil
	if s.proc == nil {
		return
	}
	s.requestQuota(d)
}

func (s *Socket) sendQuota(line string) {
	if s.proc == nil {
		return
	}
	if err := s.proc.SendLine(line); err != nil {
		s.log.Error("write quota to backend failed", "error", err)
		s.doClose(reply.Disconnected)
	}
}

func (s *Socket) stopQuotaTimers() {
	for d, t := range s.quotaTimers {
		if t != nil {
			t.Stop()
			s.quotaTimers[d] = nil
		}
	}
}

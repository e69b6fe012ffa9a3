package mbclient

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// RefNoGenerator produces the per-request correlation ids the portal requires.
// Format: USERID-yyyyMMddHHmmssSSS-seq. The sequence keeps ids unique even when
// two requests share a millisecond.
type RefNoGenerator struct {
	prefix string
	seq    atomic.Uint64
	now    func() time.Time
}

// NewRefNoGenerator creates a generator for the given portal user id.
func NewRefNoGenerator(userID string) *RefNoGenerator {
	return &RefNoGenerator{prefix: strings.ToUpper(strings.TrimSpace(userID)), now: time.Now}
}

// Next returns a fresh refNo.
func (g *RefNoGenerator) Next() string {
	t := g.now()
	stamp := fmt.Sprintf("%s%03d", t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond))
	return fmt.Sprintf("%s-%s-%d", g.prefix, stamp, g.seq.Add(1))
}

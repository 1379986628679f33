// Package xid generates prefixed, time-ordered random identifiers for the
// catalog entities: prod (products), cat (categories), var (variants),
// stk (stocks), stg (stock groups), cust (customers), doc (documents).
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form <prefix>-<unix-nanos>-<8 random hex bytes>.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

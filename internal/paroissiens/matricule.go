package paroissiens

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const matriculePrefix = "PAR"

// NewMatricule builds "PAR-<base36 millis>-<4 random base36>", upper case.
func NewMatricule(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[:4]) % (36 * 36 * 36 * 36)
	suffix := strings.ToUpper(strconv.FormatUint(uint64(n), 36))
	if len(suffix) < 4 {
		suffix = strings.Repeat("0", 4-len(suffix)) + suffix
	}
	return matriculePrefix + "-" + stamp + "-" + suffix
}

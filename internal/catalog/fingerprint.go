package catalog

import (
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/datex/internal/types"
)

// Fingerprint returns a content hash of a dataset.
// Row order does not matter: the same rows always produce the same
// fingerprint, so a reloaded dataset can reuse a cached catalog.
func Fingerprint(rows []types.Row) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join([]string{
			strconv.FormatInt(r.Time.UnixNano(), 10),
			strconv.Quote(r.Location),
			strconv.Quote(r.SourceTag),
			strconv.Quote(r.Metric),
			strconv.FormatUint(math.Float64bits(r.Value), 16),
		}, "|")
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

package editor

import (
	"strconv"
	"time"

	c "github.com/patrickmn/go-cache"
	"github.com/spaolacci/murmur3"

	"github.com/timoa/github-actions-gui/workflow"
)

// Fingerprint returns a short hash of a document's text. It is used as a
// cache key and to detect unchanged saves.
func Fingerprint(text string) string {
	return strconv.FormatUint(murmur3.Sum64([]byte(text)), 16)
}

type cachedParse struct {
	text   string
	result workflow.Result
}

// ParseCache memoizes Parse results by document text. The source view
// re-submits the same text on every keystroke pause, and undo restores
// texts seen before.
type ParseCache struct {
	cache *c.Cache
}

// NewParseCache returns a cache whose entries expire after ttl.
func NewParseCache(ttl time.Duration) *ParseCache {
	return &ParseCache{
		cache: c.New(ttl, 2*ttl),
	}
}

// Parse returns the parse result for text, from cache when possible. The
// returned workflow is always a private copy.
func (p *ParseCache) Parse(text string) workflow.Result {
	if p == nil {
		return workflow.Parse(text)
	}
	key := Fingerprint(text)
	if v, found := p.cache.Get(key); found {
		// Hash collisions fall through to a real parse.
		if entry, ok := v.(cachedParse); ok && entry.text == text {
			return copyResult(entry.result)
		}
	}
	res := workflow.Parse(text)
	p.cache.SetDefault(key, cachedParse{text: text, result: copyResult(res)})
	return res
}

// Len returns the number of cached results.
func (p *ParseCache) Len() int {
	return p.cache.ItemCount()
}

func copyResult(r workflow.Result) workflow.Result {
	return workflow.Result{
		Workflow:    r.Workflow.Clone(),
		Errors:      append([]string(nil), r.Errors...),
		SyntaxError: r.SyntaxError,
	}
}

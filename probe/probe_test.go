package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<html><body>
<ul class="items"><li class="item">a</li><li class="item">b</li><li class="item hidden">c</li></ul>
<a id="next" href="?p=2">next</a>
</body></html>`

func TestCount(t *testing.T) {
	got, err := Count(doc, map[string]string{
		"items":  "ul.items > li.item",
		"hidden": ".item.hidden",
		"next":   "#next",
		"none":   "table tr",
		"broken": "li[",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"items": 3, "hidden": 1, "next": 1, "none": 0, "broken": -1}, got)
}

func TestCount_NoSelectors(t *testing.T) {
	got, err := Count(doc, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

type htmlFunc func(ctx context.Context) (string, error)

func (f htmlFunc) HTML(ctx context.Context) (string, error) { return f(ctx) }

func TestProber(t *testing.T) {
	src := htmlFunc(func(context.Context) (string, error) { return doc, nil })
	got, err := Prober{}.Probe(context.Background(), src, map[string]string{"next": "#next"})
	require.NoError(t, err)
	assert.Equal(t, 1, got["next"])

	failing := htmlFunc(func(context.Context) (string, error) { return "", errors.New("page closed") })
	_, err = Prober{}.Probe(context.Background(), failing, map[string]string{"next": "#next"})
	assert.Error(t, err)
}

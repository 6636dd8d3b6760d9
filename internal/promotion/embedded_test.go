package promotion

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(raw)
}

func TestFromEmbeddedJSONInitialState(t *testing.T) {
	t.Parallel()

	found := FromEmbeddedJSON(readFixture(t, "embedded_initial_state.html"), DefaultStorefront(), testNow)
	require.Len(t, found, 1)
	require.Equal(t, "emb-1", found[0].ID)
	require.Equal(t, "https://store.epicgames.com/ru/p/embedded-free", found[0].URL)
}

func TestFromEmbeddedJSONApolloState(t *testing.T) {
	t.Parallel()

	markup := `<script>window.__APOLLO_STATE__ = {"Offer:1":{"elements":[` + freeElement("apollo") + `]},"list":[` +
		freeElement("listed") + `, 3]};</script>`
	found := FromEmbeddedJSON(markup, DefaultStorefront(), testNow)
	require.Len(t, found, 2)
	require.Equal(t, "apollo", found[0].ID)
	require.Equal(t, "listed", found[1].ID)
}

func TestFromEmbeddedJSONApplicationJSONScript(t *testing.T) {
	t.Parallel()

	markup := `<script type="application/json">{"unrelated":true}</script>
<script type="application/json">not json</script>
<script type="application/json">{"searchStore":{"elements":[` + freeElement("script") + `]}}</script>`
	found := FromEmbeddedJSON(markup, DefaultStorefront(), testNow)
	require.Len(t, found, 1)
	require.Equal(t, "script", found[0].ID)
}

func TestFromEmbeddedJSONNothingEmbedded(t *testing.T) {
	t.Parallel()

	require.Empty(t, FromEmbeddedJSON(`<html><script>var x = 1;</script></html>`, DefaultStorefront(), testNow))
	require.Empty(t, FromEmbeddedJSON(`<script>window.__INITIAL_STATE__ = {broken;</script>`, DefaultStorefront(), testNow))
}

func freeElement(id string) string {
	return `{"id":"` + id + `","title":"` + id + `","promotions":{"promotionalOffers":[{"promotionalOffers":[` +
		`{"startDate":"2025-01-02T16:00:00.000Z","endDate":"2025-01-09T16:00:00.000Z",` +
		`"discountSetting":{"discountType":"PERCENTAGE","discountPercentage":0}}]}]}}`
}

package decksource

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_GenericPlainText(t *testing.T) {
	svc, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Deck\n4 Opt (XLN) 65\n2 Opt (xln) 65\n\nSideboard\n2 Negate\n"))
	}))

	deck, err := svc.Fetch(context.Background(), server.URL+"/lists/tempo.txt")
	require.NoError(t, err)

	require.Len(t, deck.Mainboard, 1)
	assert.Equal(t, 6, deck.Mainboard[0].Quantity)
	assert.Equal(t, "XLN", deck.Mainboard[0].Set)
	require.Len(t, deck.Sideboard, 1)
	assert.Equal(t, "", deck.Name)
}

func TestFetch_GenericHTML(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title> Izzet Phoenix | Some Blog </title><script>var x = "4 Not A Card";</script></head>
<body>
<p>My favourite list this season:</p>
<pre>4 Arclight Phoenix (GRN) 91
4 Opt<br>2 Fire // Ice</pre>
<p>Sideboard ideas:</p>
<textarea>Sideboard
3 Negate</textarea>
</body>
</html>`

	svc, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))

	deck, err := svc.Fetch(context.Background(), server.URL+"/decks/izzet")
	require.NoError(t, err)

	assert.Equal(t, "Izzet Phoenix | Some Blog", deck.Name)
	require.Len(t, deck.Mainboard, 3)
	assert.Equal(t, "Arclight Phoenix", deck.Mainboard[0].Name)
	assert.Equal(t, "Opt", deck.Mainboard[1].Name)
	assert.Equal(t, "Fire // Ice", deck.Mainboard[2].Name)
	require.Len(t, deck.Sideboard, 1)
	assert.Equal(t, 3, deck.Sideboard[0].Quantity)
}

func TestFetch_GenericNoDeckList(t *testing.T) {
	svc, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Blog</title></head><body><p>No lists here</p></body></html>`))
	}))

	_, err := svc.Fetch(context.Background(), server.URL+"/post")
	assert.ErrorIs(t, err, ErrNoDeckList)
}

func TestFetch_GenericUnsupportedContentType(t *testing.T) {
	svc, server := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50})
	}))

	_, err := svc.Fetch(context.Background(), server.URL+"/deck.png")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

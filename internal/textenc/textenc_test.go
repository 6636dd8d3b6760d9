package textenc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const sample = "Свежие бесплатные игры и обновления каждый день"

func encode1251(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func TestDecodeUndeclaredDefaultsToWindows1251(t *testing.T) {
	t.Parallel()

	require.Equal(t, sample, Decode(encode1251(t, sample), "text/html"))
	require.Equal(t, sample, Decode(encode1251(t, sample), ""))
}

func TestDecodeFallsBackWhenUTF8DeclarationIsWrong(t *testing.T) {
	t.Parallel()

	body := encode1251(t, sample)
	require.Equal(t, sample, Decode(body, "text/html; charset=UTF-8"))
}

func TestDecodeHonorsUTF8(t *testing.T) {
	t.Parallel()

	require.Equal(t, sample, Decode([]byte(sample), "text/html; charset=utf-8"))
	require.Equal(t, sample, Decode([]byte(sample), "text/html; charset=utf8"))
}

func TestDecodeASCIIIsStableUnderAnyCandidate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plain ascii", Decode([]byte("plain ascii"), "text/html; charset=windows-1251"))
	require.Equal(t, "", Decode(nil, ""))
}

func TestDeclaredCharset(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"text/html; charset=windows-1251":   "windows-1251",
		"text/html; charset=\"UTF-8\"":      "utf-8",
		"text/html":                         "",
		"":                                  "",
		"text/html;; charset=cp1251; q=bad": "cp1251",
	}
	for in, want := range tests {
		require.Equal(t, want, DeclaredCharset(in), in)
	}
}

func TestResolveNormalizesLabels(t *testing.T) {
	t.Parallel()

	name, _ := Resolve("cp1251")
	require.Equal(t, Windows1251, name)
	name, _ = Resolve("win1251")
	require.Equal(t, Windows1251, name)
	name, _ = Resolve("unicode-1-1-utf-8")
	require.Equal(t, UTF8, name)
	name, _ = Resolve("koi8-r")
	require.Equal(t, "koi8-r", name)
	name, _ = Resolve("no-such-charset")
	require.Equal(t, Windows1251, name)
}

package cache_test

import (
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-globetiles/cache"
	"github.com/eak1mov/go-globetiles/tile"
	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func TestAddressCodeRoundTrip(t *testing.T) {
	seen := make(map[uint64]tile.Address)
	for addr := range tile.Levels(0, 5) {
		code := cache.EncodeAddress(addr)
		if prev, ok := seen[code]; ok {
			t.Fatalf("EncodeAddress(%v) = %d, already used by %v", addr, code, prev)
		}
		seen[code] = addr

		if got := cache.DecodeAddress(code); got != addr {
			t.Errorf("DecodeAddress(%d) = %v, want = %v", code, got, addr)
		}
	}
	if got, want := len(seen), tile.CountLevels(0, 5); got != want {
		t.Errorf("got %d codes, want = %d", got, want)
	}
}

func TestAddressCodesAreDensePerLevel(t *testing.T) {
	tests := []struct {
		addr tile.Address
		want uint64
	}{
		{tile.Address{Level: 0, X: 0, Y: 0}, 0},
		{tile.Address{Level: 0, X: 1, Y: 0}, 1},
		{tile.Address{Level: 1, X: 0, Y: 0}, 2},
		{tile.Address{Level: 2, X: 0, Y: 0}, 10},
	}
	for _, tt := range tests {
		if got := cache.EncodeAddress(tt.addr); got != tt.want {
			t.Errorf("EncodeAddress(%v) = %d, want = %d", tt.addr, got, tt.want)
		}
	}
}

func openStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openStore(t)
	fp := cache.Fingerprint("color", "tiles/{z}/{x}/{y}.png")
	addr := tile.Address{Level: 3, X: 9, Y: 2}

	_, ok, err := store.Get(fp, addr)
	require.NoError(t, err)
	require.False(t, ok)

	want := cache.Decoded{
		Format:   gputypes.TextureFormatRGBA8Unorm,
		Width:    2,
		Height:   1,
		Pixels:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Metadata: &tile.Metadata{MinValue: -10, MaxValue: 20, HasMissingData: true},
	}
	require.NoError(t, store.Put(fp, addr, want))

	got, ok, err := store.Get(fp, addr)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%v", diff)
	}

	_, ok, err = store.Get(cache.Fingerprint("other"), addr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreClearAndVisit(t *testing.T) {
	store := openStore(t)
	a, b := cache.Fingerprint("a"), cache.Fingerprint("b")
	pixel := cache.Decoded{Format: gputypes.TextureFormatR8Unorm, Width: 1, Height: 1, Pixels: []byte{7}}

	addrs := []tile.Address{{Level: 0, X: 1, Y: 0}, {Level: 2, X: 5, Y: 3}, {Level: 1, X: 2, Y: 1}}
	for _, addr := range addrs {
		require.NoError(t, store.Put(a, addr, pixel))
	}
	require.NoError(t, store.Put(b, addrs[0], pixel))

	var visited []tile.Address
	require.NoError(t, store.Visit(a, func(addr tile.Address) error {
		visited = append(visited, addr)
		return nil
	}))
	if diff := cmp.Diff([]tile.Address{addrs[0], addrs[2], addrs[1]}, visited); diff != "" {
		t.Errorf("Visit mismatch (-want +got):\n%v", diff)
	}

	n, err := store.Clear(a)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	count, err := store.Count(a)
	require.NoError(t, err)
	require.Zero(t, count)
	count, err = store.Count(b)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFingerprintSeparatesParts(t *testing.T) {
	if cache.Fingerprint("ab", "c") == cache.Fingerprint("a", "bc") {
		t.Error("Fingerprint does not separate parts")
	}
}

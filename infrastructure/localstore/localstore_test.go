package localstore_test

import (
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/jrazmi/lexprep/infrastructure/localstore"
)

func TestFileRoundTrip(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "store.json")
	kv, err := localstore.NewFile(path)
	is.NoErr(err)

	_, ok, err := kv.Get(localstore.KeyTasks)
	is.NoErr(err)
	is.True(!ok) // fresh store has no keys

	is.NoErr(kv.Set(localstore.KeyTasks, []byte(`[{"id":"1"}]`)))
	is.NoErr(kv.Set(localstore.KeyNotificationSettings, []byte(`{"enabled":true}`)))

	v, ok, err := kv.Get(localstore.KeyTasks)
	is.NoErr(err)
	is.True(ok)
	is.Equal(string(v), `[{"id":"1"}]`)

	// Reopen from disk and confirm persistence.
	kv2, err := localstore.NewFile(path)
	is.NoErr(err)
	v, ok, err = kv2.Get(localstore.KeyNotificationSettings)
	is.NoErr(err)
	is.True(ok)
	is.Equal(string(v), `{"enabled":true}`)
}

func TestFileDelete(t *testing.T) {
	is := is.New(t)

	kv, err := localstore.NewFile(filepath.Join(t.TempDir(), "store.json"))
	is.NoErr(err)

	is.NoErr(kv.Set("k", []byte("v")))
	is.NoErr(kv.Delete("k"))
	is.NoErr(kv.Delete("k")) // deleting an absent key is fine

	_, ok, err := kv.Get("k")
	is.NoErr(err)
	is.True(!ok)
}

func TestMemoryFailWrites(t *testing.T) {
	is := is.New(t)

	kv := localstore.NewMemory()
	is.NoErr(kv.Set("k", []byte("v")))

	kv.FailWrites = true
	is.True(kv.Set("k", []byte("v2")) != nil)
	is.True(kv.Delete("k") != nil)

	// The previous value is still readable.
	v, ok, err := kv.Get("k")
	is.NoErr(err)
	is.True(ok)
	is.Equal(string(v), "v")
}

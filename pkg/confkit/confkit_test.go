package confkit_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpflow/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	t.Setenv("CONF_DIR", "expanded")

	tests := []struct {
		name string
		base string
		file string
		want string
	}{
		{"absolute path ignores base", "/base", "/abs/file.yaml", "/abs/file.yaml"},
		{"relative path joins base", "/base", "etc/file.yaml", "/base/etc/file.yaml"},
		{"env var expands", "/base", "${CONF_DIR}/file.yaml", "/base/expanded/file.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confkit.ResolvePath(tt.base, tt.file))
		})
	}
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "/etc/config", confkit.BaseDir("/etc/config/app.yaml"))
	assert.Equal(t, "config", confkit.BaseDir("config/app.yaml"))
}

func TestSectionHydrateSkipsWhenNoFile(t *testing.T) {
	section := &confkit.Section[string]{}
	err := section.Hydrate("/base", func(string) (*string, error) {
		t.Fatal("loader must not run for an empty section")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, section.Value)
}

func TestSectionHydrateLoadsAndRewritesPath(t *testing.T) {
	section := &confkit.Section[string]{File: "sub.yaml"}
	value := "loaded"
	err := section.Hydrate("/base", func(path string) (*string, error) {
		assert.Equal(t, filepath.Join("/base", "sub.yaml"), path)
		return &value, nil
	})
	require.NoError(t, err)
	require.NotNil(t, section.Value)
	assert.Equal(t, "loaded", *section.Value)
	assert.Equal(t, filepath.Join("/base", "sub.yaml"), section.File)
}

func TestSectionHydratePropagatesLoaderError(t *testing.T) {
	section := &confkit.Section[int]{File: "broken.yaml"}
	boom := errors.New("boom")
	err := section.Hydrate("/base", func(string) (*int, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

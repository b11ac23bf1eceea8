package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/pkg/command"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()

	assert.Contains(t, c.WakeWords, "jarvis")
	assert.NotEmpty(t, c.Replies.Stop)

	s, ok := c.ShortcutByName("WhatsApp")
	require.True(t, ok)
	assert.Equal(t, command.KindAppOpenUniversal, s.Kind)
	assert.Equal(t, "Opening WhatsApp for you. 💬", s.Response)

	s, ok = c.ShortcutByPhrase("visual  studio code open")
	require.True(t, ok)
	assert.Equal(t, command.KindWindowsControl, s.Kind)
}

func TestWindowsActionOrder(t *testing.T) {
	c := Default()

	a, ok := c.WindowsAction("please unmute")
	require.True(t, ok)
	assert.Equal(t, "Unmuting audio.", a.Response)

	a, ok = c.WindowsAction("mute the sound")
	require.True(t, ok)
	assert.Equal(t, "Muting audio.", a.Response)

	_, ok = c.WindowsAction("dance for me")
	assert.False(t, ok)
}

func TestLanguageAndFolders(t *testing.T) {
	c := Default()

	code, ok := c.LanguageCode("Hindi")
	require.True(t, ok)
	assert.Equal(t, "hi", code)

	name, dir, ok := c.CommonFolder("open downloads folder")
	require.True(t, ok)
	assert.Equal(t, "downloads", name)
	assert.Equal(t, "Downloads", dir)

	assert.True(t, c.IsBrowserApp("youtube"))
	assert.False(t, c.IsBrowserApp("notepad"))
}

func TestLaunchCommandFor(t *testing.T) {
	c := Default()

	got, err := c.LaunchCommandFor("linux", LaunchOpenURL, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "xdg-open 'https://example.com'", got)

	got, err = c.LaunchCommandFor("windows", LaunchKill, "chrome.exe")
	require.NoError(t, err)
	assert.Equal(t, "taskkill /f /im chrome.exe", got)

	_, err = c.LaunchCommandFor("plan9", LaunchStart, "x")
	assert.Error(t, err)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "shortcuts:\n  - names: [x]\n    kind: teleport\n    response: ok\n"},
		{"missing response", "shortcuts:\n  - names: [x]\n    kind: general\n"},
		{"duplicate name", "shortcuts:\n  - names: [x]\n    kind: general\n    response: a\n  - names: [X]\n    kind: general\n    response: b\n"},
		{"bad action", "windows_actions:\n  - command: foo\n"},
		{"not yaml", "shortcuts: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestStoreSwap(t *testing.T) {
	first := Default()
	s := NewStore(first)
	assert.Same(t, first, s.Current())

	second, err := Parse([]byte("wake_words: [friday]\n"))
	require.NoError(t, err)
	s.Swap(second)
	assert.Equal(t, []string{"friday"}, s.Current().WakeWords)
}

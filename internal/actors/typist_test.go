package actors

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
)

func typistConfig() config.CharonConfig {
	cfg := config.Default()
	cfg.TypingDelay = 0
	return cfg
}

func TestTypist_SendText(t *testing.T) {
	h := newHarness(t, "Typist", typistConfig())
	task := mustSpawn[struct{}](t, NewTypist(newMemFS(nil)), h, struct{}{})

	h.send(domain.SendText{Text: "hI"})

	assert.Equal(t, domain.NewHidReport(0, domain.KeyA+7), h.next(t).Payload)
	assert.Equal(t, domain.HidReport{}, h.next(t).Payload)
	assert.Equal(t, domain.NewHidReport(domain.ModLeftShift, domain.KeyA+8), h.next(t).Payload)
	assert.Equal(t, domain.HidReport{}, h.next(t).Payload)
	assert.Equal(t, domain.TextSent{}, h.next(t).Payload)

	h.exit()
	assert.NoError(t, waitTask(t, task))
}

func TestTypist_SkipsUnmappableRunes(t *testing.T) {
	h := newHarness(t, "Typist", typistConfig())
	mustSpawn[struct{}](t, NewTypist(newMemFS(nil)), h, struct{}{})

	h.send(domain.SendText{Text: "é"})

	assert.Equal(t, domain.TextSent{}, h.next(t).Payload)
}

func TestTypist_SendFileRemovesFile(t *testing.T) {
	fs := newMemFS(map[string]string{"/tmp/snippet": "a"})
	h := newHarness(t, "Typist", typistConfig())
	mustSpawn[struct{}](t, NewTypist(fs), h, struct{}{})

	h.send(domain.SendFile{Path: "/tmp/missing"})
	h.send(domain.SendFile{Path: "/tmp/snippet", Remove: true})

	assert.Equal(t, domain.NewHidReport(0, domain.KeyA), h.next(t).Payload)
	assert.Equal(t, domain.HidReport{}, h.next(t).Payload)
	assert.Equal(t, domain.TextSent{}, h.next(t).Payload)
	assert.Equal(t, []string{"/tmp/snippet"}, fs.removedPaths())
}

func TestTypist_QueuesRequestsWhileTyping(t *testing.T) {
	cfg := config.Default()
	cfg.TypingDelay = 5 * time.Millisecond
	h := newHarness(t, "Typist", cfg)
	mustSpawn[struct{}](t, NewTypist(newMemFS(nil)), h, struct{}{})

	h.send(domain.SendText{Text: "aa"})
	h.send(domain.SendText{Text: "b"})

	var reports []domain.HidReport
	texts := 0
	for texts < 2 {
		switch p := h.next(t).Payload.(type) {
		case domain.HidReport:
			reports = append(reports, p)
		case domain.TextSent:
			texts++
		}
	}
	require.Len(t, reports, 6)
	assert.Equal(t, domain.NewHidReport(0, domain.KeyA+1), reports[4])
}

func TestTypist_ExitStopsTyping(t *testing.T) {
	cfg := config.Default()
	cfg.TypingDelay = 50 * time.Millisecond
	h := newHarness(t, "Typist", cfg)
	task := mustSpawn[struct{}](t, NewTypist(newMemFS(nil)), h, struct{}{})

	h.send(domain.SendText{Text: "a long text that takes a while"})
	h.next(t)
	h.exit()

	assert.NoError(t, waitTask(t, task))
}

func TestTypist_ExitStopsTypingWithoutDelay(t *testing.T) {
	h := newHarness(t, "Typist", typistConfig())
	h.send(domain.SendText{Text: strings.Repeat("a", 200)})
	h.exit()
	task := mustSpawn[struct{}](t, NewTypist(newMemFS(nil)), h, struct{}{})

	require.NoError(t, waitTask(t, task))
	require.Len(t, h.out, 2)
	assert.Equal(t, domain.NewHidReport(0, domain.KeyA), (<-h.out).Payload)
	assert.Equal(t, domain.HidReport{}, (<-h.out).Payload)
}

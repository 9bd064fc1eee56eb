package daemon

import (
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actors"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/processor"
)

// KeyPipelineName is the name of the default key pipeline actor.
const KeyPipelineName = "KeyEventPipeline"

// Deps are the infrastructure services the default actors need.
type Deps struct {
	Stats      domain.StatsStore
	Process    domain.ProcessManager
	FileSystem domain.FileSystem
	Processors *processor.Registry

	Scanner actors.KeyScanner
	Writer  actors.HidWriter
}

// DefaultDeps returns deps with real device access and the built-in
// processors. stats may be nil.
func DefaultDeps(stats domain.StatsStore, pm domain.ProcessManager, fs domain.FileSystem) Deps {
	return Deps{
		Stats:      stats,
		Process:    pm,
		FileSystem: fs,
		Processors: processor.NewRegistry(),
		Scanner:    actors.NewKeyScanner(),
		Writer:     actors.NewHidWriter(),
	}
}

// AddDefaultGraph registers the standard set of actors: one scanner per
// keyboard, the key pipeline, the HID writer, the typist, typing stats,
// power management when an idle timeout is set, and the client bridge.
func (d *Daemon) AddDefaultGraph(deps Deps) error {
	factories, err := deps.Processors.Factories(processor.DefaultKeyPipeline...)
	if err != nil {
		return err
	}

	d.AddScanners(deps.Scanner, domain.TopicSystem).
		AddPipeline(KeyPipelineName, []domain.Topic{domain.TopicKeyInput, domain.TopicSystem}, factories...).
		AddActor(deps.Writer, domain.TopicKeyOutput, domain.TopicSystem).
		AddActor(actors.NewTypist(deps.FileSystem), domain.TopicTextInput, domain.TopicSystem).
		AddActor(actors.NewTypingStats(deps.Stats, deps.Process),
			domain.TopicKeyInput, domain.TopicTelemetry, domain.TopicMonitoring, domain.TopicSystem).
		AddActorConditionally(d.cfg.IdleTimeout > 0, actors.PowerManager{}, domain.TopicKeyInput, domain.TopicSystem).
		AddActor(actors.ClientBridge{}, domain.TopicSystem, domain.TopicStats, domain.TopicKeyInput)

	d.logger.Info("default graph registered",
		zap.Int("actors", len(d.Tasks())),
		zap.Int("subscribers", len(d.Subscribers())))
	return nil
}

package report

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/schema"
)

// FilePublisher renders a run and writes both documents into Dir.
type FilePublisher struct {
	Dir   string
	Clock func() time.Time

	// Paths is set after a successful Publish.
	Paths Paths
}

func (p *FilePublisher) Publish(summary schema.RunSummary, findings []schema.Finding) error {
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock()
	}
	log.Info().Msg("Generating security report")

	docs, err := Render(summary, findings, now)
	if err != nil {
		return err
	}
	paths, err := Write(p.Dir, now.Format(StampLayout), docs)
	if err != nil {
		return err
	}
	p.Paths = paths
	log.Info().Str("html", paths.HTML).Str("json", paths.JSON).Msg("Reports generated")
	return nil
}

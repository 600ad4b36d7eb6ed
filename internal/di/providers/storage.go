package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/audio"
	"github.com/listenupapp/listenup-ingest/internal/logger"
	"github.com/listenupapp/listenup-ingest/internal/media/images"
)

// audioReadTimeout bounds one audio header read.
const audioReadTimeout = 30 * time.Second

// ProvideAudioReader provides the header-only audio metadata reader.
func ProvideAudioReader(i do.Injector) (*audio.MetaReader, error) {
	return audio.NewMetaReader(audioReadTimeout), nil
}

// ProvideCoverProcessor provides the cover processor. Archive bundles fall
// back to artwork embedded in their first chapter's audio.
func ProvideCoverProcessor(i do.Injector) (*images.Processor, error) {
	reader := do.MustInvoke[*audio.MetaReader](i)
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(images.NewCoverStore(), reader, log.Logger), nil
}

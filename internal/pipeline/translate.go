package pipeline

import (
	"context"
	"errors"

	"github.com/subautotrans/subautotrans/internal/provider"
	"github.com/subautotrans/subautotrans/internal/subtitle"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// ErrCancelled aborts a run when the task was cancelled mid-flight.
var ErrCancelled = errors.New("task cancelled")

const defaultBatchSize = 20

// translationProgress maps translated-line counts onto the 10..90
// progress band; the boundaries are reserved for setup and muxing.
func translationProgress(done, total int) int {
	if total <= 0 {
		return 90
	}
	p := 10 + 80*done/total
	if p > 90 {
		p = 90
	}
	return p
}

// translateLines fills TranslatedText for every line, in batches. A
// failed batch falls back to translating its lines one by one, and a
// line that still fails keeps its original text so one bad line never
// sinks the file.
func (p *Pipeline) translateLines(ctx context.Context, prov provider.Provider, f *subtitle.File, sourceLang, targetLang string, cancelled func() bool, report func(progress int)) error {
	texts := f.Texts()
	total := len(texts)
	translations := make([]string, total)

	batchSize := p.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < total; start += batchSize {
		if err := checkCancelled(ctx, cancelled); err != nil {
			return err
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batch := texts[start:end]

		results, err := prov.TranslateBatch(ctx, batch, sourceLang, targetLang)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			log.Warn("Batch translation failed, falling back to line-by-line: %v", err)
			results = make([]string, len(batch))
		}

		for i, text := range batch {
			if results[i] != "" {
				translations[start+i] = results[i]
				continue
			}
			if err := checkCancelled(ctx, cancelled); err != nil {
				return err
			}
			single, err := prov.Translate(ctx, text, sourceLang, targetLang)
			if err != nil {
				if ctx.Err() != nil {
					return ErrCancelled
				}
				log.Warn("Line translation failed, keeping original: %v", err)
				single = text
			}
			translations[start+i] = single
		}

		if report != nil {
			report(translationProgress(end, total))
		}
	}

	f.SetTranslations(translations)
	return nil
}

func checkCancelled(ctx context.Context, cancelled func() bool) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if cancelled != nil && cancelled() {
		return ErrCancelled
	}
	return nil
}

// resolveSourceLang prefers the task's declared source language and
// falls back to the detected one.
func resolveSourceLang(declared string, f *subtitle.File) string {
	if declared != "" {
		return declared
	}
	if f.Language.IsRoot() {
		return ""
	}
	return f.Language.String()
}

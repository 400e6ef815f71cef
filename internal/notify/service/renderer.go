package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
)

//go:embed templates/*.txt.tmpl
var embedded embed.FS

const templateSuffix = ".txt.tmpl"

var _ ndomain.Renderer = (*TemplateRenderer)(nil)

// TemplateRenderer renders mail bodies from "<id>.txt.tmpl" files, either
// the built-in set or a directory that can be watched for edits.
type TemplateRenderer struct {
	dir string
	log zerolog.Logger

	mu  sync.RWMutex
	set *template.Template
}

// NewTemplateRenderer loads templates from dir, or the built-in ones when
// dir is empty.
func NewTemplateRenderer(dir string, log zerolog.Logger) (*TemplateRenderer, error) {
	r := &TemplateRenderer{dir: dir, log: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TemplateRenderer) source() (fs.FS, error) {
	if r.dir == "" {
		return fs.Sub(embedded, "templates")
	}
	return os.DirFS(r.dir), nil
}

// Reload parses the templates again. On error the previous set stays active.
func (r *TemplateRenderer) Reload() error {
	src, err := r.source()
	if err != nil {
		return err
	}
	names, err := fs.Glob(src, "*"+templateSuffix)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no %s templates found", templateSuffix)
	}
	set := template.New("mail").Option("missingkey=error")
	for _, name := range names {
		body, err := fs.ReadFile(src, name)
		if err != nil {
			return fmt.Errorf("read template %s: %w", name, err)
		}
		id := strings.TrimSuffix(name, templateSuffix)
		if _, err := set.New(id).Parse(string(body)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
	}
	for _, id := range []string{ndomain.TemplateAdmin, ndomain.TemplateCustomer} {
		if set.Lookup(id) == nil {
			return fmt.Errorf("template %s missing", id)
		}
	}

	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

func (r *TemplateRenderer) Render(templateID string, data ndomain.RenderContext) (string, error) {
	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()

	t := set.Lookup(templateID)
	if t == nil {
		return "", fmt.Errorf("unknown template %q", templateID)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return buf.String(), nil
}

// Watch reloads templates when files in the template directory change. It
// returns when ctx is done. The built-in set is never watched.
func (r *TemplateRenderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(r.dir); err != nil {
		return err
	}

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if err := r.Reload(); err != nil {
				r.log.Error().Err(err).Str("dir", r.dir).Msg("template reload failed; keeping previous templates")
				return
			}
			r.log.Info().Str("dir", r.dir).Msg("templates reloaded")
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(filepath.Base(ev.Name), templateSuffix) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn().Err(err).Msg("template watcher error")
		}
	}
}

package octoserve

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var defaultErrorPages = map[string]string{
	"404.html": "<!DOCTYPE html><html><body><h1>404</h1></body></html>",
	"500.html": "<!DOCTYPE html><html><body><h1>500</h1></body></html>",
}

// Bootstrap makes sure the document root and its error pages exist. Existing
// pages are never overwritten.
func Bootstrap(root string) error {
	dir := filepath.Join(root, ErrorPagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	for name, content := range defaultErrorPages {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return errors.Wrapf(err, "create %s", path)
		}
		_, werr := f.WriteString(content)
		cerr := f.Close()
		if werr != nil {
			return errors.Wrapf(werr, "write %s", path)
		}
		if cerr != nil {
			return errors.Wrapf(cerr, "close %s", path)
		}
		logger.Info().Str("file", path).Msg("[octoserve] created default error page")
	}
	return nil
}

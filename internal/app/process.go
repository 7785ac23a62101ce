package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/you-humble/mediafanout/internal/engine"

	"github.com/gabriel-vasile/mimetype"
)

// Process runs the configured transforms against a local file and writes the
// result as indented JSON to out.
func Process(ctx context.Context, cfgPath, path, field string, out io.Writer) error {
	di := newDI(cfgPath)
	di.Logger()
	defer di.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect type of %s: %w", path, err)
	}

	result, err := di.Engine(ctx).HandleFile(nil, &engine.File{
		FieldName:    field,
		OriginalName: filepath.Base(path),
		MIMEType:     mt.String(),
		Size:         st.Size(),
		Stream:       f,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

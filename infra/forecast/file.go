package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kilianp07/smartcharge/core/model"
)

// File reads a forecast from a JSON array of {"start_time", "marketprice"}
// objects. It is reread on every fetch.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Prices(context.Context) ([]model.ForecastEntry, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read forecast file: %w", err)
	}
	var out []model.ForecastEntry
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode forecast file %s: %w", f.path, err)
	}
	return out, nil
}

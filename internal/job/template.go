package job

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rendis/deskbot/pkg/schema"
)

// DefaultTemplate is written by `deskbot init`.
const DefaultTemplate = `# deskbot job file
excel:
  file_path: data/stock.xlsx      # .xlsx or .csv, relative to this file
  sheet_name:                     # empty means the first sheet
  code_column: 编码
  quantity_column: 库存数

settings:
  failsafe: true                  # move the pointer to the top-left corner to abort
  countdown: 3                    # seconds before the first record
  pause: 0.1                      # seconds after every mouse or keyboard action
  # filter: quantity > 0          # skip records for which this is false
  # filter_engine: expr           # expr or cel
  # schedule: "0 9 * * 1-5"       # cron expression for deskbot schedule

steps:
  - name: focus search box
    action: click
    x: 0                          # use deskbot pick to capture coordinates
    y: 0
  - name: enter code
    action: type_text
    text: "{code}"
    clear_first: true
  - name: search
    action: press_key
    key: enter
    wait_after: 1
  - name: focus quantity
    action: double_click
    x: 0
    y: 0
  - name: enter quantity
    action: type_text
    text: "{quantity}"
    clear_first: true
  - name: save
    action: press_key
    key: ctrl+s
    wait_after: 0.5
`

// WriteTemplate writes DefaultTemplate to path. An existing file is only
// replaced when force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return schema.NewErrorf(schema.ErrCodeConflict, "%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return schema.NewErrorf(schema.ErrCodeConfiguration, "stat %s", path).WithCause(err)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return schema.NewErrorf(schema.ErrCodeConfiguration, "create %s", dir).WithCause(err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultTemplate), 0o644); err != nil {
		return schema.NewErrorf(schema.ErrCodeConfiguration, "write %s", path).WithCause(err)
	}
	return nil
}

package taskservice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/sdk/validation"
)

// exportVersion tags the backup file format.
const exportVersion = "1.0"

// ExportPayload is the backup document: the full local task set across
// all dates, an export timestamp, and a format version.
type ExportPayload struct {
	Tasks      []taskrepo.Task `json:"tasks"`
	ExportDate string          `json:"exportDate"`
	Version    string          `json:"version"`
}

// ExportData serializes the entire local task set to a backup file and
// returns its path. Export always reads the device store, never the
// network, even when signed in.
func (s *Service) ExportData() (string, error) {
	all, err := s.localStore.All()
	if err != nil {
		return "", s.fail(err, "Failed to export data")
	}
	if all == nil {
		all = []taskrepo.Task{}
	}

	payload := ExportPayload{
		Tasks:      all,
		ExportDate: s.nowUTC().Format(time.RFC3339),
		Version:    exportVersion,
	}

	bs, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", s.fail(err, "Failed to export data")
	}

	name := fmt.Sprintf("lexprep-backup-%s.json", s.today())
	path := filepath.Join(s.exportDir, name)
	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return "", s.fail(err, "Failed to export data")
	}

	s.log.Info("exported task data", "path", path, "count", len(all))
	return path, nil
}

// importTask keeps completed optional during decoding so a payload
// omitting the flag is rejected instead of silently defaulting it.
type importTask struct {
	Time      string  `json:"time"`
	EndTime   *string `json:"endTime"`
	Content   string  `json:"content"`
	Tag       string  `json:"tag"`
	Completed *bool   `json:"completed"`
	Date      string  `json:"date"`
}

type importPayload struct {
	Tasks []importTask `json:"tasks"`
}

// ImportData validates and imports a backup payload. Validation is
// all-or-nothing: any malformed task rejects the whole import before a
// single write happens. Unknown top-level fields are ignored. The count
// of imported tasks is returned.
//
// The remote path bulk-inserts the tasks stamped with the current
// identity; the local path assigns fresh ids and merges additively into
// the existing set.
func (s *Service) ImportData(ctx context.Context, data []byte) (int, error) {
	var payload importPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, s.fail(fmt.Errorf("%w: %v", ErrInvalidImport, err), "Invalid backup file format")
	}
	if payload.Tasks == nil {
		return 0, s.fail(fmt.Errorf("%w: missing tasks array", ErrInvalidImport), "Invalid backup file format")
	}

	inputs := make([]taskrepo.CreateTask, len(payload.Tasks))
	for i, t := range payload.Tasks {
		if err := validateImportTask(i, t); err != nil {
			return 0, s.fail(err, "Invalid backup file format")
		}
		date := t.Date
		if date == "" {
			date = s.today()
		}
		inputs[i] = taskrepo.CreateTask{
			Time:      t.Time,
			EndTime:   t.EndTime,
			Content:   t.Content,
			Tag:       t.Tag,
			Completed: *t.Completed,
			Date:      date,
		}
	}

	backend, ident := s.snapshot()

	if backend == BackendRemote {
		for i := range inputs {
			inputs[i].UserID = validation.StringPtr(ident.UID)
		}
		if err := s.remote.CreateBatch(ctx, inputs); err != nil {
			return 0, s.fail(err, "Failed to import data")
		}
		s.refreshRemote(ctx, ident)
		return len(inputs), nil
	}

	if err := s.local.CreateBatch(ctx, inputs); err != nil {
		return 0, s.fail(err, "Failed to import data")
	}
	s.readLocal(ctx)
	return len(inputs), nil
}

func validateImportTask(i int, t importTask) error {
	switch {
	case t.Time == "":
		return fmt.Errorf("%w: task %d has no time", ErrInvalidImport, i)
	case !validation.ValidClockTime(t.Time):
		return fmt.Errorf("%w: task %d time %q is not HH:MM", ErrInvalidImport, i, t.Time)
	case t.EndTime != nil && !validation.ValidClockTime(*t.EndTime):
		return fmt.Errorf("%w: task %d end time %q is not HH:MM", ErrInvalidImport, i, *t.EndTime)
	case t.Content == "":
		return fmt.Errorf("%w: task %d has no content", ErrInvalidImport, i)
	case t.Tag == "":
		return fmt.Errorf("%w: task %d has no tag", ErrInvalidImport, i)
	case t.Completed == nil:
		return fmt.Errorf("%w: task %d has no completed flag", ErrInvalidImport, i)
	case t.Date != "" && !validation.ValidDate(t.Date):
		return fmt.Errorf("%w: task %d date %q is not YYYY-MM-DD", ErrInvalidImport, i, t.Date)
	}
	return nil
}

func (s *Service) nowUTC() time.Time {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return now().UTC()
}

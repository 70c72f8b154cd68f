package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/eligibility"
)

// DownloadArtifacts saves the artifacts archive of the target execution (or
// the job's resolved execution) into the download directory and returns
// the saved path.
func (s *JobService) DownloadArtifacts(ctx context.Context, jobID string, target *domain.Execution) (string, error) {
	st, err := s.state(jobID)
	if err != nil {
		return "", err
	}

	if d := eligibility.CanDownloadArtifacts(st, target); !d.Allowed {
		return "", s.deny(eligibility.ActionDownloadArtifacts, d)
	}
	ref, _ := eligibility.ArtifactsTarget(st, target)

	release, err := s.acquire(eligibility.ActionDownloadArtifacts, jobID)
	if err != nil {
		return "", err
	}
	defer release()

	s.notes.Info(MsgDownloadStarted)

	artifact, err := s.backend.DownloadArtifacts(ctx, ref.Param, ref.Value)
	if err != nil {
		s.notes.Error(describe(err, MsgDownloadFailed))
		return "", fmt.Errorf("download artifacts %s %s: %w", ref.Param, ref.Value, err)
	}
	defer artifact.Body.Close()

	path, err := save(s.downloadDir, artifact)
	if err != nil {
		s.notes.Error(MsgDownloadFailed)
		return "", err
	}

	s.notes.Success(fmt.Sprintf(MsgDownloadDone, path))
	return path, nil
}

// save writes the archive next to any existing files without overwriting
// them, the way a browser numbers repeated downloads.
func save(dir string, a *api.Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	name := a.Filename
	if name == "" {
		name = api.DefaultArtifactName
	}
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	var (
		f    *os.File
		path string
		err  error
	)
	for i := 0; i < 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path = filepath.Join(dir, candidate)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	if _, err := io.Copy(f, a.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close artifact file: %w", err)
	}
	return path, nil
}

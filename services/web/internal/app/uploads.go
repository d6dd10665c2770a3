package app

import (
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"askmynotes/internal/metrics"
	"askmynotes/pkg/domain"
)

// FileUpload is one file received from the browser.
type FileUpload struct {
	Name string
	Data []byte
}

type uploadJob struct {
	id   string
	name string
	data []byte
}

// SelectUploadSubject sets the subject new files go to. Empty clears it.
func (w *Workspace) SelectUploadSubject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(&w.uploadSubject, name)
}

// UploadFiles records every acceptable file as uploading and forwards them to
// the backend in the background. Files with a disallowed extension or over the
// size limit get an error notice and no record.
func (w *Workspace) UploadFiles(subject string, files []FileUpload) error {
	if subject == "" {
		return domain.Invalid(MsgSelectSubjectFirst)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSubjectLocked(subject) {
		return domain.Invalid(MsgSubjectNotFound)
	}
	w.uploadSubject = subject
	ctx, _ := w.scopeLocked(subject)

	cfg := w.app.cfg
	var jobs []uploadJob
	for _, f := range files {
		if !allowedExtension(f.Name, cfg.AllowedExtensions) {
			w.addNoticeLocked(domain.AreaUpload, domain.NoticeError, msgInvalidFileType(f.Name, cfg.AllowedExtensions))
			continue
		}
		if cfg.MaxUploadBytes > 0 && int64(len(f.Data)) > cfg.MaxUploadBytes {
			w.addNoticeLocked(domain.AreaUpload, domain.NoticeError, msgFileTooLarge(f.Name))
			continue
		}
		job := uploadJob{id: w.app.newID(), name: f.Name, data: f.Data}
		w.files[subject] = append(w.files[subject], domain.UploadedFile{
			ID:     job.id,
			Name:   f.Name,
			Size:   int64(len(f.Data)),
			Status: domain.FileUploading,
		})
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil
	}

	w.app.spawn(func() {
		var g errgroup.Group
		g.SetLimit(cfg.UploadConcurrency)
		for _, job := range jobs {
			g.Go(func() error {
				err := w.app.notes.Upload(ctx, subject, job.name, job.data)
				w.finishUpload(subject, job.id, err)
				return nil
			})
		}
		_ = g.Wait()
	})
	return nil
}

// finishUpload applies one upload result if its record still exists.
func (w *Workspace) finishUpload(subject, fileID string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	files := w.files[subject]
	i := slices.IndexFunc(files, func(f domain.UploadedFile) bool { return f.ID == fileID })
	if i < 0 || !files[i].CanTransition(domain.FileSuccess) {
		w.app.metrics.IncUpload(metrics.OutcomeStale)
		return
	}
	w.app.metrics.IncUpload(outcome(err))
	if err != nil {
		files[i].Status = domain.FileError
		files[i].Error = Reason(err)
		w.app.logger.Warn("upload failed", "subject", subject, "file", files[i].Name, "err", err)
		w.addNoticeLocked(domain.AreaUpload, domain.NoticeError, msgUploadFailed(files[i].Name, files[i].Error))
		return
	}
	files[i].Status = domain.FileSuccess
	w.addNoticeLocked(domain.AreaUpload, domain.NoticeSuccess, msgUploaded(files[i].Name))
}

// RemoveFile drops a failed upload record. Unknown ids are ignored.
func (w *Workspace) RemoveFile(subject, fileID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	files := w.files[subject]
	i := slices.IndexFunc(files, func(f domain.UploadedFile) bool { return f.ID == fileID })
	if i < 0 {
		return nil
	}
	if files[i].Status != domain.FileError {
		return domain.Invalid(MsgOnlyFailedRemovable)
	}
	w.files[subject] = slices.Delete(files, i, i+1)
	return nil
}

func allowedExtension(name string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext != "" && slices.Contains(allowed, ext)
}

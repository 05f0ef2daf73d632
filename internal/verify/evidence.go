// synergy-platform/internal/verify/evidence.go
package verify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"synergy-platform/models"
)

// FSEvidenceStore кладет подтверждения на диск и возвращает путь
// относительно базовой директории. Раскладка повторяет прежнюю:
// <компания>/<регион>/<группа>/<ГГГГ_ММ>/<врач>_<uuid>.<расш>.
type FSEvidenceStore struct {
	BaseDir string
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Save сохраняет файл подтверждения. Имя файла строится из очищенного ФИО
// врача и uuid, чтобы повторные сдачи не затирали друг друга.
func (fs *FSEvidenceStore) Save(ev Evidence, plan models.TargetRecord) (string, error) {
	if len(ev.Data) == 0 {
		return "", errors.New("empty evidence file")
	}

	dir := filepath.Join(
		plan.Company,
		unsafeChars.ReplaceAllString(plan.Region, "_"),
		unsafeChars.ReplaceAllString(plan.GroupName, "_"),
		time.Now().Format("2006_01"),
	)
	if err := ensureDir(filepath.Join(fs.BaseDir, dir)); err != nil {
		return "", err
	}

	ext := filepath.Ext(ev.FileName)
	if ext == "" {
		ext = ".jpg"
	}
	safeName := unsafeChars.ReplaceAllString(plan.DoctorName, "_")
	if len(safeName) > 30 {
		safeName = safeName[:30]
	}
	name := fmt.Sprintf("%s_%s%s", safeName, uuid.NewString(), ext)

	rel := filepath.Join(dir, name)
	if err := os.WriteFile(filepath.Join(fs.BaseDir, rel), ev.Data, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// ensureDir гарантирует существование директории.
// Если путь существует и это файл — вернет ошибку.
func ensureDir(path string) error {
	if path == "" {
		return errors.New("empty dir path")
	}
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return errors.New("path exists and is not a directory")
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

package census

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// FetchTracts downloads the TIGER/Line tract shapefile zip into destDir
// and extracts it, returning the path to the .shp file. The download is
// skipped when the zip is already present; extraction is skipped when
// the .shp is already present.
func FetchTracts(ctx context.Context, tigerURL, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "census: create %s", destDir)
	}

	zipName := filepath.Base(tigerURL)
	zipPath := filepath.Join(destDir, zipName)
	shpPath := strings.TrimSuffix(zipPath, ".zip") + ".shp"

	logger := log.GetLogger().With(log.OperationKey, log.OperationDownload)

	if _, err := os.Stat(shpPath); err == nil {
		logger.Info("tract shapefile already extracted", log.PathKey, shpPath)
		return shpPath, nil
	}

	if _, err := os.Stat(zipPath); err == nil {
		logger.Info("tract zip already downloaded", log.PathKey, zipPath)
	} else {
		if err := downloadTigerZip(ctx, tigerURL, zipPath); err != nil {
			return "", err
		}
	}

	if err := extractZip(zipPath, destDir); err != nil {
		return "", err
	}

	if _, err := os.Stat(shpPath); err != nil {
		return "", errors.Newf("census: %s not found after extracting %s", shpPath, zipPath)
	}

	logger.Info("tract shapefile ready", log.PathKey, shpPath)
	return shpPath, nil
}

func downloadTigerZip(ctx context.Context, tigerURL, zipPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tigerURL, nil)
	if err != nil {
		return errors.Wrap(err, "census: build tiger request")
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return errors.NewDownloadError(tigerURL, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewDownloadError(tigerURL, resp.StatusCode, nil)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrapf(err, "census: create %s", zipPath)
	}
	defer f.Close()

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(zipPath)
		return errors.NewDownloadError(tigerURL, resp.StatusCode, err)
	}

	log.GetLogger().Info("tiger zip downloaded",
		log.URLKey, tigerURL,
		log.PathKey, zipPath,
		log.BytesKey, written)

	return nil
}

// extractZip unpacks the archive into destDir. Entry paths are resolved
// against destDir and rejected if they escape it.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrapf(err, "census: open zip %s", zipPath)
	}
	defer r.Close()

	destRoot := filepath.Clean(destDir) + string(os.PathSeparator)

	for _, entry := range r.File {
		target := filepath.Join(destDir, entry.Name)
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), destRoot) &&
			filepath.Clean(target) != filepath.Clean(destDir) {
			return errors.Newf("census: zip entry %q escapes %s", entry.Name, destDir)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "census: create %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "census: create %s", filepath.Dir(target))
		}

		if err := extractFile(entry, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, "census: open zip entry %s", entry.Name)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "census: create %s", target)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "census: extract %s", entry.Name)
	}
	return nil
}

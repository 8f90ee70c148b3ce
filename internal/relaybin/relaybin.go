// Package relaybin resolves and, failing that, bootstraps the relay
// binary (spec §6 XRAY_PATH/XRAY_DIR_NAME). The relay itself stays an
// opaque external collaborator — this package only finds or fetches
// it, never parses or drives its protocol internals.
package relaybin

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const releasesAPI = "https://api.github.com/repos/XTLS/Xray-core/releases/latest"

// Resolve finds a usable relay binary in this order: an explicit path,
// PATH, a previously bootstrapped copy under dirName, or a fresh
// download into dirName. It mirrors ensure_xray()'s fallback chain.
func Resolve(ctx context.Context, explicitPath, dirName string) (string, error) {
	if explicitPath != "" {
		if available(ctx, explicitPath) {
			return explicitPath, nil
		}
		return "", fmt.Errorf("relaybin: XRAY_PATH set but %q is not runnable", explicitPath)
	}

	if path, err := exec.LookPath(exeName()); err == nil && available(ctx, path) {
		return path, nil
	}

	local := filepath.Join(dirName, exeName())
	if available(ctx, local) {
		return local, nil
	}

	if err := os.MkdirAll(dirName, 0o755); err != nil {
		return "", fmt.Errorf("relaybin: create %s: %w", dirName, err)
	}
	path, err := download(ctx, dirName)
	if err != nil {
		return "", err
	}
	if !available(ctx, path) {
		return "", fmt.Errorf("relaybin: downloaded binary at %s is not runnable", path)
	}
	return path, nil
}

func exeName() string {
	if runtime.GOOS == "windows" {
		return "xray.exe"
	}
	return "xray"
}

// available runs "<path> version" and reports whether it exits clean.
func available(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, "version")
	return cmd.Run() == nil
}

func assetName() (string, error) {
	is64 := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	isArm := runtime.GOARCH == "arm64" || runtime.GOARCH == "arm"

	switch runtime.GOOS {
	case "windows":
		if isArm {
			return "Xray-windows-arm64-v8a.zip", nil
		}
		if is64 {
			return "Xray-windows-64.zip", nil
		}
		return "Xray-windows-32.zip", nil
	case "linux":
		if isArm {
			if runtime.GOARCH == "arm64" {
				return "Xray-linux-arm64-v8a.zip", nil
			}
			return "Xray-linux-arm32-v7a.zip", nil
		}
		if is64 {
			return "Xray-linux-64.zip", nil
		}
		return "Xray-linux-32.zip", nil
	case "darwin":
		if isArm {
			return "Xray-macos-arm64-v8a.zip", nil
		}
		return "Xray-macos-64.zip", nil
	default:
		return "", fmt.Errorf("relaybin: unsupported platform %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type release struct {
	TagName string         `json:"tag_name"`
	Assets  []releaseAsset `json:"assets"`
}

// download fetches the latest relay release matching this platform and
// extracts the executable into dirName.
func download(ctx context.Context, dirName string) (string, error) {
	asset, err := assetName()
	if err != nil {
		return "", err
	}

	rel, err := fetchRelease(ctx)
	if err != nil {
		return "", err
	}

	var downloadURL string
	for _, a := range rel.Assets {
		if a.Name == asset {
			downloadURL = a.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return "", fmt.Errorf("relaybin: no release asset named %s in %s", asset, rel.TagName)
	}

	zipPath := filepath.Join(dirName, "relay.zip")
	if err := fetchFile(ctx, downloadURL, zipPath); err != nil {
		return "", err
	}
	defer os.Remove(zipPath)

	return extractExecutable(zipPath, dirName)
}

func fetchRelease(ctx context.Context) (*release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesAPI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relaybin: fetch release metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relaybin: release metadata status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("relaybin: decode release metadata: %w", err)
	}
	return &rel, nil
}

func fetchFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("relaybin: download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relaybin: download status %d for %s", resp.StatusCode, url)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("relaybin: write %s: %w", dest, err)
	}
	return nil
}

func extractExecutable(zipPath, dirName string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("relaybin: open archive: %w", err)
	}
	defer r.Close()

	want := exeName()
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if filepath.Base(f.Name) != want {
			continue
		}
		dest := filepath.Join(dirName, want)
		if err := extractOne(f, dest); err != nil {
			return "", err
		}
		return dest, nil
	}
	return "", fmt.Errorf("relaybin: no %s found in archive", want)
}

func extractOne(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("relaybin: extract %s: %w", dest, err)
	}
	return nil
}

// Package update provides self-update functionality for taskdeck.
package update

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/kabuto-png/taskdeck/internal/version"
)

const (
	// GitHubAPILatestRelease is the URL for fetching the latest release info.
	GitHubAPILatestRelease = "https://api.github.com/repos/kabuto-png/taskdeck/releases/latest"

	// GitHubReleaseBinaryTemplate is the URL template for downloading
	// binaries. %s is the version (without 'v' prefix), %s is OS, %s is arch.
	GitHubReleaseBinaryTemplate = "https://github.com/kabuto-png/taskdeck/releases/download/v%s/taskdeck-%s-%s"

	// GitHubReleaseChecksumsTemplate is the URL template for downloading checksums.
	GitHubReleaseChecksumsTemplate = "https://github.com/kabuto-png/taskdeck/releases/download/v%s/checksums.txt"

	httpTimeout = 30 * time.Second
)

var httpClient = &http.Client{
	Timeout: httpTimeout,
}

// Update checks for and applies updates to the taskdeck binary.
func Update() error {
	current := version.Version
	if current == "dev" {
		return fmt.Errorf("cannot update dev builds - build from source instead")
	}

	if err := checkPlatformSupport(); err != nil {
		return err
	}

	fmt.Printf("Current version: %s\n", current)
	fmt.Println("Checking for updates...")

	latest, err := GetLatestVersion()
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	vLatest, err := semver.NewVersion("v" + latest)
	if err != nil {
		return fmt.Errorf("failed to parse latest version: %w", err)
	}
	vCurrent, err := semver.NewVersion("v" + current)
	if err != nil {
		return fmt.Errorf("failed to parse current version: %w", err)
	}

	if !vLatest.GreaterThan(vCurrent) {
		fmt.Println("Already up to date.")
		return nil
	}

	fmt.Printf("New version available: %s\n", latest)

	checksums, err := downloadChecksums(latest)
	if err != nil {
		return fmt.Errorf("failed to download checksums: %w", err)
	}

	if err := downloadAndInstallBinary(latest, checksums); err != nil {
		return fmt.Errorf("failed to update binary: %w", err)
	}

	fmt.Println("Updated successfully. Restart taskdeck to use the new version.")
	return nil
}

// checkPlatformSupport returns an error if the current platform has no
// release binaries.
func checkPlatformSupport() error {
	goos := runtime.GOOS
	goarch := runtime.GOARCH

	supported := map[string][]string{
		"darwin": {"amd64", "arm64"},
		"linux":  {"amd64", "arm64"},
	}

	archs, ok := supported[goos]
	if !ok {
		return fmt.Errorf("unsupported operating system: %s (taskdeck supports macOS and Linux)", goos)
	}
	for _, arch := range archs {
		if arch == goarch {
			return nil
		}
	}
	return fmt.Errorf("unsupported architecture: %s/%s", goos, goarch)
}

// CheckForUpdate checks if a newer version is available without
// installing it.
func CheckForUpdate() (latestVersion string, updateAvailable bool, err error) {
	current := version.Version
	if current == "dev" {
		return "", false, nil
	}

	latest, err := GetLatestVersion()
	if err != nil {
		return "", false, err
	}

	v1, err := semver.NewVersion("v" + latest)
	if err != nil {
		return latest, false, nil
	}
	v2, err := semver.NewVersion("v" + current)
	if err != nil {
		return latest, false, nil
	}

	return latest, v1.GreaterThan(v2), nil
}

// GetLatestVersion fetches the latest release version from GitHub.
func GetLatestVersion() (string, error) {
	resp, err := httpClient.Get(GitHubAPILatestRelease)
	if err != nil {
		return "", fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("GitHub API rate limit exceeded - try again later")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned %s", resp.Status)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse release info: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("no release tag found")
	}

	return strings.TrimPrefix(release.TagName, "v"), nil
}

// downloadChecksums fetches and parses the checksums.txt file for a
// release. Returns a map of filename -> expected SHA256 hash.
func downloadChecksums(ver string) (map[string]string, error) {
	url := fmt.Sprintf(GitHubReleaseChecksumsTemplate, ver)

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}

	checksums := make(map[string]string)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			checksums[parts[len(parts)-1]] = parts[0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}

	return checksums, nil
}

// downloadAndInstallBinary downloads the binary for the current
// platform, verifies its checksum, and replaces the current executable.
func downloadAndInstallBinary(ver string, checksums map[string]string) error {
	goos := runtime.GOOS
	goarch := runtime.GOARCH
	binaryName := fmt.Sprintf("taskdeck-%s-%s", goos, goarch)

	expectedHash, ok := checksums[binaryName]
	if !ok {
		return fmt.Errorf("no checksum found for %s", binaryName)
	}

	url := formatBinaryURL(ver, goos, goarch)
	fmt.Printf("Downloading taskdeck v%s for %s/%s...\n", ver, goos, goarch)

	tmpFile, err := os.CreateTemp("", "taskdeck-update-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	resp, err := httpClient.Get(url)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tmpFile.Close()
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	hasher := sha256.New()
	writer := io.MultiWriter(tmpFile, hasher)
	if _, err := io.Copy(writer, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to save download: %w", err)
	}
	tmpFile.Close()

	actualHash := hex.EncodeToString(hasher.Sum(nil))
	if actualHash != expectedHash {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedHash, actualHash)
	}
	fmt.Println("Checksum verified.")

	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("failed to make executable: %w", err)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to determine executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	// On Unix a rename over a running binary is fine; fall back to a
	// copy across filesystems.
	if err := os.Rename(tmpPath, execPath); err != nil {
		if err := copyFile(tmpPath, execPath); err != nil {
			return fmt.Errorf("failed to replace binary: %w", err)
		}
	}

	return nil
}

func formatBinaryURL(ver, goos, goarch string) string {
	return fmt.Sprintf(GitHubReleaseBinaryTemplate, ver, goos, goarch)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode())
}
